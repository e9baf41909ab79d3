package chatws

import (
	"encoding/json"
	"strconv"
	"unicode/utf8"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedrowpmiguel/fitconnect-sub000/internal/models"
	"github.com/pedrowpmiguel/fitconnect-sub000/internal/services"
)

// Hub fans server events out to authenticated connections. Delivery is
// best-effort: a connection whose send buffer is full is dropped, nothing is
// queued or replayed. Clients recover authoritative state by polling.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	push       chan scopedEvent
	logger     zerolog.Logger
}

// Client is one websocket connection. It joins no user scope until the peer
// sends an authenticate frame whose userId matches the token identity bound
// at upgrade time.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string
	tokenID string
	userID  string
	send    chan []byte
}

// Envelope is the wire frame for both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type scopedEvent struct {
	userID  string
	payload []byte
}

const (
	EventNewMessage    = "new_message"
	EventTrainerAlert  = "trainer_alert"
	EventWorkoutMissed = "workout_missed"
	eventAuthenticate  = "authenticate"
)

const previewLimit = 120

type NewMessagePayload struct {
	Sender  models.Contact `json:"sender"`
	Message string         `json:"message"`
}

type TrainerAlertPayload struct {
	Message string `json:"message"`
}

type WorkoutMissedPayload struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	Reason     string `json:"reason"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		push:       make(chan scopedEvent, 64),
		logger:     logger,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, tokenID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		id:      uuid.NewString(),
		tokenID: tokenID,
		send:    make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case event := <-h.push:
			h.sendToUser(event.userID, event.payload)
		}
	}
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Push addresses an event to every live connection of one user. Unknown or
// offline users are silently skipped.
func (h *Hub) Push(userID int64, event string, data any) {
	encoded, err := encodeEvent(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("hub encode event")
		return
	}
	h.push <- scopedEvent{userID: strconv.FormatInt(userID, 10), payload: encoded}
}

// PushNewMessage notifies the recipient of a stored message. Alerts also get
// a trainer_alert frame for the toast layer.
func (h *Hub) PushNewMessage(delivery *services.MessageDelivery) {
	h.Push(delivery.Message.RecipientID, EventNewMessage, NewMessagePayload{
		Sender:  delivery.Sender,
		Message: truncatePreview(delivery.Message.Content),
	})

	if delivery.Message.MessageType == models.MessageTypeAlert {
		h.Push(delivery.Message.RecipientID, EventTrainerAlert, TrainerAlertPayload{
			Message: delivery.Message.Content,
		})
	}
}

func (h *Hub) PushWorkoutMissed(missed *services.MissedWorkout) {
	h.Push(missed.Log.TrainerID, EventWorkoutMissed, WorkoutMissedPayload{
		ClientID:   strconv.FormatInt(missed.Log.ClientID, 10),
		ClientName: missed.ClientName,
		Reason:     missed.Reason,
	})
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// truncatePreview caps the toast preview, cutting on a rune boundary so a
// multi-byte character at the limit is dropped rather than split.
func truncatePreview(content string) string {
	if len(content) <= previewLimit {
		return content
	}

	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// ReadPump consumes inbound frames. The first accepted frame must be the
// authenticate handshake; until it arrives the connection belongs to no
// scope and receives no pushes.
func (c *Client) ReadPump() {
	defer func() {
		if c.userID != "" {
			c.hub.Unregister(c)
		} else {
			close(c.send)
		}
		_ = c.conn.Close()
	}()

	authenticated := false
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.hub.logger.Debug().Str("conn", c.id).Msg("dropping malformed frame")
			continue
		}

		if envelope.Event == eventAuthenticate {
			if authenticated {
				continue
			}

			var handshake struct {
				UserID string `json:"userId"`
			}
			if err := json.Unmarshal(envelope.Data, &handshake); err != nil || handshake.UserID == "" {
				c.hub.logger.Warn().Str("conn", c.id).Msg("invalid authenticate frame")
				return
			}
			if handshake.UserID != c.tokenID {
				c.hub.logger.Warn().
					Str("conn", c.id).
					Str("claimed", handshake.UserID).
					Msg("authenticate identity mismatch")
				return
			}

			c.userID = handshake.UserID
			authenticated = true
			c.hub.register <- c
			continue
		}

		// The socket is a notification channel; other client frames carry
		// no server-side behavior.
		c.hub.logger.Debug().Str("conn", c.id).Str("event", envelope.Event).Msg("ignoring client frame")
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
