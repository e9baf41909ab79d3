package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Envelope is the wire frame for both directions of the notification socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Transport is the minimal surface of a live socket. The raw handle never
// leaves the Conn that owns it; other components interact only through
// Emit/On/Off.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a Transport. The default dials a websocket with
// gorilla/websocket; tests inject doubles.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) WriteJSON(v any) error {
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

type wsDialer struct {
	header http.Header
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, d.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

// Conn owns the single notification socket of a client session. At most one
// transport is live at a time: Connect while connected is a no-op, and a
// failed connect lands back in the disconnected state, eligible for the next
// manual Connect. There is no automatic reconnect loop.
type Conn struct {
	url        string
	dialer     Dialer
	dispatcher *Dispatcher
	logger     zerolog.Logger

	mu        sync.Mutex
	transport Transport
	state     State
	userID    string
	gen       uint64
}

type Option func(*Conn)

// WithDialer replaces the websocket dialer, typically with a test double.
func WithDialer(dialer Dialer) Option {
	return func(c *Conn) { c.dialer = dialer }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
		c.dispatcher.logger = logger
	}
}

// WithBearerToken attaches the credential to the upgrade request.
func WithBearerToken(token string) Option {
	return func(c *Conn) {
		if d, ok := c.dialer.(*wsDialer); ok {
			d.header = http.Header{"Authorization": []string{"Bearer " + token}}
		}
	}
}

func NewConn(url string, opts ...Option) *Conn {
	logger := zerolog.Nop()
	c := &Conn{
		url:        url,
		dialer:     &wsDialer{},
		dispatcher: NewDispatcher(logger),
		logger:     logger,
		state:      StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the transport and performs the authenticate handshake for
// userID. Calling Connect while a connection is live or in progress is a
// no-op, so repeated calls never create parallel sockets.
func (c *Conn) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	transport, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("connect failed")
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		// A Disconnect landed while the dial was in flight; that wins.
		c.mu.Unlock()
		_ = transport.Close()
		c.logger.Info().Msg("discarding connection superseded by disconnect")
		return nil
	}
	c.transport = transport
	c.state = StateConnected
	c.userID = userID
	c.mu.Unlock()

	// Transport-level connect succeeded; identify ourselves so the server
	// scopes pushes to this user.
	if err := c.writeEvent(transport, "authenticate", map[string]string{"userId": userID}); err != nil {
		c.logger.Warn().Err(err).Msg("authenticate handshake failed")
		c.dropTransport(transport)
		return err
	}

	c.mu.Lock()
	if c.transport == transport {
		c.state = StateAuthenticated
	}
	c.mu.Unlock()

	go c.readLoop(transport)
	return nil
}

// Disconnect closes the transport if open, clears every registered
// subscription, and resets to disconnected. Safe to call at any time,
// including when already disconnected.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.state = StateDisconnected
	c.userID = ""
	c.gen++
	c.mu.Unlock()

	if transport != nil {
		_ = transport.Close()
	}
	c.dispatcher.Reset()
}

// Emit sends a named event upstream if currently connected. When not
// connected the event is logged and dropped; the socket is a best-effort
// notification channel, nothing is queued.
func (c *Conn) Emit(event string, data any) {
	c.mu.Lock()
	transport := c.transport
	state := c.state
	c.mu.Unlock()

	if transport == nil || state < StateConnected {
		c.logger.Info().Str("event", event).Msg("dropping emit while disconnected")
		return
	}

	if err := c.writeEvent(transport, event, data); err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("emit failed")
	}
}

// On registers handler for server pushes of the named event.
func (c *Conn) On(event string, handler Handler) {
	c.dispatcher.On(event, handler)
}

// Off removes the handler for the named event.
func (c *Conn) Off(event string) {
	c.dispatcher.Off(event)
}

// State reports the current lifecycle position.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) writeEvent(transport Transport, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return transport.WriteJSON(Envelope{Event: event, Data: raw})
}

func (c *Conn) readLoop(transport Transport) {
	for {
		payload, err := transport.ReadMessage()
		if err != nil {
			c.dropTransport(transport)
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.logger.Debug().Msg("dropping malformed push frame")
			continue
		}

		c.dispatcher.Dispatch(envelope.Event, envelope.Data)
	}
}

// dropTransport tears down one specific transport. A stale read loop whose
// transport was already superseded must not disturb the current connection.
func (c *Conn) dropTransport(transport Transport) {
	c.mu.Lock()
	current := c.transport == transport
	if current {
		c.transport = nil
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	_ = transport.Close()
	if current {
		c.logger.Info().Msg("connection closed")
	}
}
