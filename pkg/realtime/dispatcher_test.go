package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestOnReplacesExistingHandler(t *testing.T) {
	dispatcher := NewDispatcher(zerolog.Nop())

	firstCalls := 0
	secondCalls := 0
	dispatcher.On("new_message", func(json.RawMessage) { firstCalls++ })
	dispatcher.On("new_message", func(json.RawMessage) { secondCalls++ })

	dispatcher.Dispatch("new_message", nil)

	if firstCalls != 0 {
		t.Errorf("replaced handler fired %d times", firstCalls)
	}
	if secondCalls != 1 {
		t.Errorf("expected active handler to fire once, fired %d times", secondCalls)
	}
}

func TestOffUnboundEventIsNoOp(t *testing.T) {
	dispatcher := NewDispatcher(zerolog.Nop())

	dispatcher.Off("never_bound")
	dispatcher.Dispatch("never_bound", nil)
}

func TestOffStopsHandler(t *testing.T) {
	dispatcher := NewDispatcher(zerolog.Nop())

	calls := 0
	dispatcher.On("trainer_alert", func(json.RawMessage) { calls++ })
	dispatcher.Dispatch("trainer_alert", nil)
	dispatcher.Off("trainer_alert")
	dispatcher.Dispatch("trainer_alert", nil)

	if calls != 1 {
		t.Errorf("expected 1 call before Off, got %d", calls)
	}
}

func TestResetDropsAllHandlers(t *testing.T) {
	dispatcher := NewDispatcher(zerolog.Nop())

	calls := 0
	dispatcher.On("new_message", func(json.RawMessage) { calls++ })
	dispatcher.On("workout_missed", func(json.RawMessage) { calls++ })

	dispatcher.Reset()
	dispatcher.Dispatch("new_message", nil)
	dispatcher.Dispatch("workout_missed", nil)

	if calls != 0 {
		t.Errorf("expected no calls after Reset, got %d", calls)
	}
}

func TestDispatchPassesPayload(t *testing.T) {
	dispatcher := NewDispatcher(zerolog.Nop())

	var got string
	dispatcher.On("new_message", func(data json.RawMessage) {
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Errorf("Unmarshal: %v", err)
			return
		}
		got = payload.Message
	})

	dispatcher.Dispatch("new_message", json.RawMessage(`{"message":"hello"}`))

	if got != "hello" {
		t.Errorf("expected payload to reach handler, got %q", got)
	}
}
