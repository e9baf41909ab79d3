package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Handler consumes the data payload of one push event. Handlers run on the
// connection's read goroutine in transport delivery order; there is no
// ordering guarantee across distinct event names.
type Handler func(data json.RawMessage)

// Dispatcher maps event names to handlers. It keeps at most one handler per
// event name: On replaces any existing binding, and the replacement is
// logged at warn level so a second feature clobbering the first is visible
// instead of silent. Callers that want to re-bind cleanly should Off first.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string]Handler
	logger   zerolog.Logger
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// On binds handler to event, replacing any previous binding.
func (d *Dispatcher) On(event string, handler Handler) {
	if handler == nil {
		return
	}

	d.mu.Lock()
	if _, exists := d.handlers[event]; exists {
		d.logger.Warn().Str("event", event).Msg("replacing existing event handler")
	}
	d.handlers[event] = handler
	d.mu.Unlock()
}

// Off removes the binding for event. It is a no-op when none is bound.
func (d *Dispatcher) Off(event string) {
	d.mu.Lock()
	delete(d.handlers, event)
	d.mu.Unlock()
}

// Reset drops every binding. The connection calls this on teardown so stale
// handlers cannot fire after disconnect.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.handlers = make(map[string]Handler)
	d.mu.Unlock()
}

// Dispatch invokes the handler bound to event, if any. Unhandled events are
// dropped silently; the push channel is advisory.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) {
	d.mu.Lock()
	handler := d.handlers[event]
	d.mu.Unlock()

	if handler != nil {
		handler(data)
	}
}
