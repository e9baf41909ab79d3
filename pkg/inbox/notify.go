package inbox

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/pedrowpmiguel/fitconnect-sub000/pkg/realtime"
)

// Push event names delivered over the notification socket.
const (
	EventNewMessage    = "new_message"
	EventTrainerAlert  = "trainer_alert"
	EventWorkoutMissed = "workout_missed"
)

// NewMessageEvent announces a stored message; the message field may be a
// truncated preview.
type NewMessageEvent struct {
	Sender  Contact `json:"sender"`
	Message string  `json:"message"`
}

type TrainerAlertEvent struct {
	Message string `json:"message"`
}

type WorkoutMissedEvent struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	Reason     string `json:"reason"`
}

// Toast is a transient notification for the UI layer. Toasts carry no
// authoritative state; the next poll does.
type Toast struct {
	Event   string
	Title   string
	Body    string
	FocusID string // counterpart id the UI may open a filtered chat for
}

// Notifier binds the three push events to toast delivery and poll
// scheduling: every push is treated purely as a hint to poll sooner, never
// as a state mutation.
type Notifier struct {
	onToast func(Toast)
	pollers []*Poller
	logger  zerolog.Logger
}

func NewNotifier(onToast func(Toast), logger zerolog.Logger, pollers ...*Poller) *Notifier {
	return &Notifier{
		onToast: onToast,
		pollers: pollers,
		logger:  logger,
	}
}

// Bind registers the push handlers on conn. Subscriptions live until the
// connection is torn down (Disconnect clears them) or Unbind is called.
func (n *Notifier) Bind(conn *realtime.Conn) {
	conn.On(EventNewMessage, func(data json.RawMessage) {
		var event NewMessageEvent
		if err := json.Unmarshal(data, &event); err != nil {
			n.logger.Debug().Msg("malformed new_message push")
			return
		}
		n.toast(Toast{
			Event: EventNewMessage,
			Title: event.Sender.Name,
			Body:  event.Message,
		})
		n.pokeAll()
	})

	conn.On(EventTrainerAlert, func(data json.RawMessage) {
		var event TrainerAlertEvent
		if err := json.Unmarshal(data, &event); err != nil {
			n.logger.Debug().Msg("malformed trainer_alert push")
			return
		}
		n.toast(Toast{
			Event: EventTrainerAlert,
			Title: "Trainer alert",
			Body:  event.Message,
		})
		n.pokeAll()
	})

	conn.On(EventWorkoutMissed, func(data json.RawMessage) {
		var event WorkoutMissedEvent
		if err := json.Unmarshal(data, &event); err != nil {
			n.logger.Debug().Msg("malformed workout_missed push")
			return
		}
		n.toast(Toast{
			Event:   EventWorkoutMissed,
			Title:   event.ClientName + " missed a workout",
			Body:    event.Reason,
			FocusID: event.ClientID,
		})
		n.pokeAll()
	})
}

// Unbind removes the push handlers from conn.
func (n *Notifier) Unbind(conn *realtime.Conn) {
	conn.Off(EventNewMessage)
	conn.Off(EventTrainerAlert)
	conn.Off(EventWorkoutMissed)
}

func (n *Notifier) toast(t Toast) {
	if n.onToast != nil {
		n.onToast(t)
	}
}

func (n *Notifier) pokeAll() {
	for _, poller := range n.pollers {
		poller.Poke()
	}
}
