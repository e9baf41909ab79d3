package inbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the fixed tick between poll cycles while a view is
// mounted.
const DefaultInterval = 3 * time.Second

// Snapshot is one full server read. Whichever fields apply to the view are
// populated; the consumer replaces its entire state with them. There is no
// incremental merge: the last snapshot delivered wins, which sidesteps
// out-of-order and duplicate-push problems at the cost of re-rendering.
type Snapshot struct {
	Conversations []ConversationSummary
	Messages      []Message
	UnreadCount   int
}

// Poller drives one view's fetch-and-reconcile loop. The push channel is
// only a hint that something changed (Poke); every state transition comes
// from these idempotent full-snapshot pulls.
//
// Each Start is a mount: Stop cancels the mount's context and bumps the
// generation, so responses that resolve after unmount are discarded without
// touching the snapshot callback. Overlapping fetches within one mount are
// permitted; both resolve to full snapshots and the last one delivered wins.
type Poller struct {
	api        *Client
	userID     int64
	otherUser  int64 // 0 means the conversation-list view
	interval   time.Duration
	pageLimit  int
	onSnapshot func(Snapshot)
	logger     zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	pokes  chan struct{}
}

type PollerOption func(*Poller)

// ForThread scopes the poller to the open thread with otherUserID instead of
// the conversation list.
func ForThread(otherUserID int64) PollerOption {
	return func(p *Poller) { p.otherUser = otherUserID }
}

func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

func WithPageLimit(limit int) PollerOption {
	return func(p *Poller) {
		if limit > 0 {
			p.pageLimit = limit
		}
	}
}

func WithPollerLogger(logger zerolog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// NewPoller builds a poller for the session user identified by userID.
// onSnapshot is the view's only state setter; it is never invoked after
// Stop returns and must not call back into the poller.
func NewPoller(api *Client, userID int64, onSnapshot func(Snapshot), opts ...PollerOption) *Poller {
	p := &Poller{
		api:        api,
		userID:     userID,
		interval:   DefaultInterval,
		pageLimit:  50,
		onSnapshot: onSnapshot,
		logger:     zerolog.Nop(),
		pokes:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start mounts the poller: one immediate fetch, then one per tick. Calling
// Start while running is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	// A poke that arrived between mounts belongs to the old view; drop it
	// so the new mount starts with just its own immediate fetch.
	select {
	case <-p.pokes:
	default:
	}

	go p.run(ctx, gen)
}

// Stop unmounts the poller: the timer is cleared and any in-flight response
// is discarded on arrival.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.gen++
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Poke requests an immediate re-fetch, typically because a push event hinted
// that something changed. Redundant pokes coalesce; a poke while unmounted
// is dropped.
func (p *Poller) Poke() {
	select {
	case p.pokes <- struct{}{}:
	default:
	}
}

func (p *Poller) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	go p.fetch(ctx, gen)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick fires regardless of in-flight fetches; snapshots
			// are idempotent so the last to resolve wins.
			go p.fetch(ctx, gen)
		case <-p.pokes:
			go p.fetch(ctx, gen)
		}
	}
}

func (p *Poller) fetch(ctx context.Context, gen uint64) {
	var snapshot Snapshot

	if p.otherUser != 0 {
		messages, err := p.api.Conversation(ctx, p.otherUser, 1, p.pageLimit)
		if err != nil {
			p.logFetchError(ctx, err)
			return
		}
		snapshot.Messages = messages
		snapshot.UnreadCount = countUnread(messages, p.userID)
		p.markIncomingRead(ctx, messages)
	} else {
		conversations, err := p.api.Conversations(ctx)
		if err != nil {
			p.logFetchError(ctx, err)
			return
		}
		snapshot.Conversations = conversations
		for _, conversation := range conversations {
			snapshot.UnreadCount += conversation.UnreadCount
		}
	}

	p.deliver(ctx, gen, snapshot)
}

// deliver replaces the view state with the snapshot unless the mount that
// issued the fetch has since been stopped. The lock is held across the
// callback so no snapshot can land after Stop returns.
func (p *Poller) deliver(ctx context.Context, gen uint64, snapshot Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || ctx.Err() != nil {
		return
	}
	p.onSnapshot(snapshot)
}

// markIncomingRead fires one mark-read call per unread message addressed to
// the session user. Failures are logged, never retried and never surfaced:
// read state self-corrects on a later poll while the message stays unread
// server-side.
func (p *Poller) markIncomingRead(ctx context.Context, messages []Message) {
	for _, message := range messages {
		if message.RecipientID != p.userID || message.IsRead {
			continue
		}
		go func(id int64) {
			if err := p.api.MarkRead(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn().Err(err).Int64("message_id", id).Msg("mark read failed")
			}
		}(message.ID)
	}
}

func (p *Poller) logFetchError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	p.logger.Warn().Err(err).Msg("poll fetch failed")
}

func countUnread(messages []Message, userID int64) int {
	count := 0
	for _, message := range messages {
		if message.RecipientID == userID && !message.IsRead {
			count++
		}
	}
	return count
}
