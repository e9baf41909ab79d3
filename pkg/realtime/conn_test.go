package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a scriptable Transport: frames pushed into incoming are
// returned from ReadMessage, writes are recorded.
type fakeTransport struct {
	mu       sync.Mutex
	writes   []Envelope
	incoming chan []byte
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{incoming: make(chan []byte, 8)}
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	payload, ok := <-t.incoming
	if !ok {
		return nil, errors.New("closed")
	}
	return payload, nil
}

func (t *fakeTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("write on closed transport")
	}
	envelope, ok := v.(Envelope)
	if !ok {
		return errors.New("unexpected write type")
	}
	t.writes = append(t.writes, envelope)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.incoming)
	}
	return nil
}

func (t *fakeTransport) writtenEvents() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Envelope(nil), t.writes...)
}

type fakeDialer struct {
	mu         sync.Mutex
	dials      int
	transports []*fakeTransport
	err        error
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	transport := newFakeTransport()
	d.transports = append(d.transports, transport)
	return transport, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// blockingDialer parks every Dial call until release is closed, so tests can
// interleave other lifecycle calls with an in-flight dial.
type blockingDialer struct {
	inner   fakeDialer
	entered chan struct{}
	release chan struct{}
}

func newBlockingDialer() *blockingDialer {
	return &blockingDialer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (d *blockingDialer) Dial(ctx context.Context, url string) (Transport, error) {
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-d.release
	return d.inner.Dial(ctx, url)
}

func TestConnectIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("second Connect: %v", err)
	}

	if dialer.dialCount() != 1 {
		t.Fatalf("expected exactly one transport, dialed %d", dialer.dialCount())
	}
	if conn.State() != StateAuthenticated {
		t.Fatalf("expected authenticated state, got %v", conn.State())
	}
}

func TestConnectSendsAuthenticateHandshake(t *testing.T) {
	dialer := &fakeDialer{}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	writes := dialer.transports[0].writtenEvents()
	if len(writes) != 1 || writes[0].Event != "authenticate" {
		t.Fatalf("expected a single authenticate frame, got %+v", writes)
	}

	var handshake struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(writes[0].Data, &handshake); err != nil {
		t.Fatalf("Unmarshal handshake: %v", err)
	}
	if handshake.UserID != "42" {
		t.Fatalf("expected userId 42, got %q", handshake.UserID)
	}
}

func TestConnectFailureLeavesDisconnectedAndRetryable(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	if err := conn.Connect(context.Background(), "42"); err == nil {
		t.Fatal("expected connect error")
	}
	if conn.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %v", conn.State())
	}

	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("reconnect after failure: %v", err)
	}
	if conn.State() != StateAuthenticated {
		t.Fatalf("expected authenticated state after retry, got %v", conn.State())
	}
}

func TestDisconnectDuringDialKeepsConnectionDown(t *testing.T) {
	dialer := newBlockingDialer()
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	done := make(chan error, 1)
	go func() {
		done <- conn.Connect(context.Background(), "42")
	}()

	select {
	case <-dialer.entered:
	case <-time.After(time.Second):
		t.Fatal("dial never started")
	}

	// Logout lands while the dial is still in flight; it must win.
	conn.Disconnect()
	close(dialer.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect never returned")
	}

	if conn.State() != StateDisconnected {
		t.Fatalf("after Disconnect the connection must stay down, state = %v", conn.State())
	}

	transport := dialer.inner.transports[0]
	transport.mu.Lock()
	closed := transport.closed
	transport.mu.Unlock()
	if !closed {
		t.Fatal("superseded transport was never closed")
	}

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("reconnect after superseded dial: %v", err)
	}
	if conn.State() != StateAuthenticated {
		t.Fatalf("expected authenticated state after reconnect, got %v", conn.State())
	}
}

func TestDisconnectIsIdempotentAndClearsSubscriptions(t *testing.T) {
	dialer := &fakeDialer{}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	calls := 0
	conn.On("new_message", func(json.RawMessage) { calls++ })

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	conn.Disconnect()
	conn.Disconnect()

	if conn.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %v", conn.State())
	}

	// A handler surviving teardown would fire here.
	conn.dispatcher.Dispatch("new_message", nil)
	if calls != 0 {
		t.Fatalf("expected subscriptions cleared on disconnect, handler fired %d times", calls)
	}
}

func TestEmitDropsWhenDisconnected(t *testing.T) {
	dialer := &fakeDialer{}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	conn.Emit("typing", map[string]string{"to": "7"})

	if dialer.dialCount() != 0 {
		t.Fatal("emit while disconnected must not open a transport")
	}
}

func TestReadLoopDispatchesPushEvents(t *testing.T) {
	dialer := &fakeDialer{}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	received := make(chan string, 1)
	conn.On("new_message", func(data json.RawMessage) {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &payload)
		received <- payload.Message
	})

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	dialer.transports[0].incoming <- []byte(`{"event":"new_message","data":{"message":"oi"}}`)

	select {
	case got := <-received:
		if got != "oi" {
			t.Fatalf("expected push payload, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("push event never reached the handler")
	}
}

func TestTransportErrorResetsState(t *testing.T) {
	dialer := &fakeDialer{}
	conn := NewConn("ws://store/ws", WithDialer(dialer))

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_ = dialer.transports[0].Close()

	deadline := time.After(time.Second)
	for conn.State() != StateDisconnected {
		select {
		case <-deadline:
			t.Fatal("state never reset after transport error")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := conn.Connect(context.Background(), "42"); err != nil {
		t.Fatalf("reconnect after drop: %v", err)
	}
	if dialer.dialCount() != 2 {
		t.Fatalf("expected a fresh transport on reconnect, dialed %d", dialer.dialCount())
	}
}
