package inbox

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// AlertProducer posts missed-workout alerts on behalf of a trainer session.
// The alert travels through the same message channel as ordinary chat; the
// server independently emits the toast push, which is outside this
// producer's synchronous contract.
//
// There is no idempotency key: resubmitting stores a duplicate alert. The
// action is manual and rare enough that this is accepted.
type AlertProducer struct {
	api    *Client
	logger zerolog.Logger
}

func NewAlertProducer(api *Client, logger zerolog.Logger) *AlertProducer {
	return &AlertProducer{api: api, logger: logger}
}

// SendAlert posts an alert of the given priority to clientID, optionally
// referencing the workout log that was missed. The trainer role is enforced
// server-side; a refusal surfaces as ErrForbidden rather than a crash.
func (p *AlertProducer) SendAlert(
	ctx context.Context,
	clientID int64,
	workoutLogRef *int64,
	message string,
	priority string,
) (*Message, error) {
	if clientID <= 0 || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidInput
	}
	if priority == "" {
		priority = PriorityHigh
	}

	alert, err := p.api.SendWorkoutMissedAlert(ctx, clientID, workoutLogRef, message, priority)
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int64("client_id", clientID).Str("priority", priority).Msg("alert sent")
	return alert, nil
}
