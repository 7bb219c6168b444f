package presenter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/driver-dispatch/internal/models"
	"github.com/example/driver-dispatch/internal/observability"
)

// State of the offer presentation machine.
type State int

const (
	StateIdle State = iota
	StatePresenting
)

func (s State) String() string {
	if s == StatePresenting {
		return "presenting"
	}
	return "idle"
}

// Queue is the candidate source the presenter reads. The presenter never
// owns the queue; it reads the head and asks for local removal.
type Queue interface {
	Head() (models.PickupRequest, bool)
	// Drop removes a request locally and records it as declined for the
	// remainder of the session.
	Drop(id string)
}

// Acceptor claims a request on the backend.
type Acceptor interface {
	AcceptRequest(ctx context.Context, requestID string) error
}

type Config struct {
	OfferWindow    time.Duration
	Debounce       time.Duration
	RedisplayDelay time.Duration
	Tick           time.Duration
}

// Event types published to subscribers.
const (
	EventPresented = "presented"
	EventTick      = "tick"
	EventAccepted  = "accepted"
	EventDeclined  = "declined"
	EventExpired   = "expired"
	EventOnline    = "online"
	EventOffline   = "offline"
)

type Event struct {
	Type      string                `json:"type"`
	Request   *models.PickupRequest `json:"request,omitempty"`
	Remaining int                   `json:"remaining,omitempty"`
}

var (
	ErrNoActiveOffer = errors.New("no active offer")
	// ErrSessionEnded reports an accept whose backend claim was in flight
	// when the session went offline; the hand-off is skipped.
	ErrSessionEnded = errors.New("session ended before accept completed")
)

// Presenter shows one candidate request at a time with a bounded countdown.
// Transitions: Idle -> (debounce) -> Presenting -> accept | decline |
// expiry -> Idle, with a fixed delay before the next head is shown.
// Countdown timers carry a generation snapshot; any transition bumps the
// generation, so at most one countdown is ever live and stale timer fires
// are no-ops.
type Presenter struct {
	cfg        Config
	queue      Queue
	acceptor   Acceptor
	online     func() bool
	onAccepted func(models.PickupRequest)
	logger     *slog.Logger

	mu              sync.Mutex
	state           State
	current         *models.PickupRequest
	remaining       int
	gen             uint64
	debouncePending bool
	accepting       bool

	subMu   sync.RWMutex
	subs    map[int]chan Event
	nextSub int
}

func New(cfg Config, queue Queue, acceptor Acceptor, online func() bool, onAccepted func(models.PickupRequest), logger *slog.Logger) *Presenter {
	return &Presenter{
		cfg:        cfg,
		queue:      queue,
		acceptor:   acceptor,
		online:     online,
		onAccepted: onAccepted,
		logger:     logger,
		subs:       make(map[int]chan Event),
	}
}

// Notify tells the presenter the candidate queue (or online state) changed.
// If idle and something is waiting, a debounced presentation is scheduled;
// an active presentation is never interrupted.
func (p *Presenter) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maybeScheduleLocked()
}

func (p *Presenter) maybeScheduleLocked() {
	if p.state != StateIdle || p.debouncePending || !p.online() {
		return
	}
	if _, ok := p.queue.Head(); !ok {
		return
	}
	p.debouncePending = true
	gen := p.gen
	time.AfterFunc(p.cfg.Debounce, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.debouncePending = false
		if gen != p.gen || p.state != StateIdle || !p.online() {
			return
		}
		p.presentHeadLocked()
	})
}

func (p *Presenter) presentHeadLocked() {
	head, ok := p.queue.Head()
	if !ok {
		return
	}
	p.gen++
	p.state = StatePresenting
	req := head
	p.current = &req
	p.remaining = int(p.cfg.OfferWindow / p.cfg.Tick)
	observability.OffersPresented.Inc()
	p.publish(Event{Type: EventPresented, Request: p.current, Remaining: p.remaining})
	gen := p.gen
	time.AfterFunc(p.cfg.Tick, func() { p.tick(gen) })
}

func (p *Presenter) tick(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.state != StatePresenting {
		return
	}
	p.remaining--
	if p.remaining > 0 {
		p.publish(Event{Type: EventTick, Request: p.current, Remaining: p.remaining})
		time.AfterFunc(p.cfg.Tick, func() { p.tick(gen) })
		return
	}
	// Countdown exhausted: treated identically to a manual decline.
	req := *p.current
	p.gen++
	p.state = StateIdle
	p.current = nil
	p.queue.Drop(req.ID)
	observability.OffersExpired.Inc()
	p.publish(Event{Type: EventExpired, Request: &req})
	p.scheduleRedisplayLocked()
}

func (p *Presenter) scheduleRedisplayLocked() {
	gen := p.gen
	time.AfterFunc(p.cfg.RedisplayDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen || p.state != StateIdle || !p.online() {
			return
		}
		p.presentHeadLocked()
	})
}

// Decline removes the current offer for the remainder of this session and
// schedules the next head after the redisplay delay. Returns false when
// nothing is presented.
func (p *Presenter) Decline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePresenting || p.current == nil || p.accepting {
		return false
	}
	req := *p.current
	p.gen++
	p.state = StateIdle
	p.current = nil
	p.queue.Drop(req.ID)
	observability.OffersDeclined.Inc()
	p.publish(Event{Type: EventDeclined, Request: &req})
	p.scheduleRedisplayLocked()
	return true
}

// Accept claims the current offer on the backend. The countdown is
// cancelled exactly once before the backend call. On failure the machine
// returns to Idle and the request is not re-queued; another driver may
// already hold it. When Stop runs while the claim is in flight the
// accepted hand-off is skipped and ErrSessionEnded is returned.
func (p *Presenter) Accept(ctx context.Context) (models.PickupRequest, error) {
	p.mu.Lock()
	if p.state != StatePresenting || p.current == nil || p.accepting {
		p.mu.Unlock()
		return models.PickupRequest{}, ErrNoActiveOffer
	}
	req := *p.current
	p.gen++ // cancels the live countdown before any suspension point
	gen := p.gen
	p.accepting = true
	p.mu.Unlock()

	err := p.acceptor.AcceptRequest(ctx, req.ID)

	p.mu.Lock()
	p.accepting = false
	if gen != p.gen {
		// Stop already reset the machine; running the hand-off now would
		// restart the relay after the offline teardown
		p.mu.Unlock()
		return models.PickupRequest{}, ErrSessionEnded
	}
	p.state = StateIdle
	p.current = nil
	p.queue.Drop(req.ID)
	if err != nil {
		p.logger.Warn("accept failed, offer not re-queued", "request_id", req.ID, "error", err)
		p.scheduleRedisplayLocked()
		p.mu.Unlock()
		return models.PickupRequest{}, err
	}
	observability.OffersAccepted.Inc()
	p.publish(Event{Type: EventAccepted, Request: &req})
	p.mu.Unlock()
	if p.onAccepted != nil {
		p.onAccepted(req)
	}
	return req, nil
}

// Stop cancels any debounce, countdown, or redisplay timer and returns to
// Idle. Called on the offline transition. Idempotent.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.debouncePending = false
	p.state = StateIdle
	p.current = nil
	p.remaining = 0
}

// Snapshot reports the current state for the status surface.
func (p *Presenter) Snapshot() (State, *models.PickupRequest, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return p.state, nil, 0
	}
	req := *p.current
	return p.state, &req, p.remaining
}

// Subscribe registers an event listener. The channel is buffered; slow
// subscribers drop events rather than blocking transitions.
func (p *Presenter) Subscribe() (int, <-chan Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextSub
	p.nextSub++
	ch := make(chan Event, 16)
	p.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel. Safe to call for
// an already-removed id.
func (p *Presenter) Unsubscribe(id int) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

// Publish lets the session controller share the subscriber registry for
// session-level events (online/offline).
func (p *Presenter) Publish(e Event) { p.publish(e) }

func (p *Presenter) publish(e Event) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
