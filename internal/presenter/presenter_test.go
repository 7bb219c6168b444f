package presenter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

type fakeQueue struct {
	mu      sync.Mutex
	items   []models.PickupRequest
	dropped []string
}

func (q *fakeQueue) Head() (models.PickupRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.PickupRequest{}, false
	}
	return q.items[0], true
}

func (q *fakeQueue) Drop(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropped = append(q.dropped, id)
	for i, r := range q.items {
		if r.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
}

func (q *fakeQueue) set(items ...models.PickupRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
}

func (q *fakeQueue) droppedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.dropped))
	copy(out, q.dropped)
	return out
}

type fakeAcceptor struct {
	calls atomic.Int64
	err   error
}

func (a *fakeAcceptor) AcceptRequest(ctx context.Context, requestID string) error {
	a.calls.Add(1)
	return a.err
}

// blockingAcceptor holds the backend claim open until released so tests
// can interleave transitions with an in-flight accept.
type blockingAcceptor struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAcceptor) AcceptRequest(ctx context.Context, requestID string) error {
	close(a.started)
	<-a.release
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		OfferWindow:    50 * time.Millisecond,
		Debounce:       10 * time.Millisecond,
		RedisplayDelay: 20 * time.Millisecond,
		Tick:           10 * time.Millisecond,
	}
}

func req(id string) models.PickupRequest {
	return models.PickupRequest{ID: id, Price: "$12.50"}
}

// nextEvent waits for an event of the wanted type, skipping others.
func nextEvent(t *testing.T, ch <-chan Event, wantType string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed waiting for %s", wantType)
			}
			if ev.Type == wantType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wantType)
		}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event, types []string, window time.Duration) {
	t.Helper()
	deadline := time.After(window)
	for {
		select {
		case ev := <-ch:
			for _, typ := range types {
				if ev.Type == typ {
					t.Fatalf("unexpected %s event", typ)
				}
			}
		case <-deadline:
			return
		}
	}
}

func TestPresentsHeadAfterDebounce(t *testing.T) {
	q := &fakeQueue{}
	q.set(req("R1"), req("R2"))
	on := atomic.Bool{}
	on.Store(true)
	p := New(fastConfig(), q, &fakeAcceptor{}, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	ev := nextEvent(t, ch, EventPresented, time.Second)
	if ev.Request.ID != "R1" {
		t.Fatalf("expected R1, got %s", ev.Request.ID)
	}
	if ev.Remaining != 5 {
		t.Fatalf("expected 5 remaining, got %d", ev.Remaining)
	}
	state, cur, _ := p.Snapshot()
	if state != StatePresenting || cur == nil || cur.ID != "R1" {
		t.Fatalf("expected presenting R1, got %v %v", state, cur)
	}
}

func TestDeclineAdvancesToNextAfterDelay(t *testing.T) {
	q := &fakeQueue{}
	q.set(req("R1"), req("R2"))
	on := atomic.Bool{}
	on.Store(true)
	p := New(fastConfig(), q, &fakeAcceptor{}, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)

	if !p.Decline() {
		t.Fatal("decline should succeed while presenting")
	}
	ev := nextEvent(t, ch, EventDeclined, time.Second)
	if ev.Request.ID != "R1" {
		t.Fatalf("declined wrong request: %s", ev.Request.ID)
	}
	ev = nextEvent(t, ch, EventPresented, time.Second)
	if ev.Request.ID != "R2" {
		t.Fatalf("expected R2 next, got %s", ev.Request.ID)
	}
	ids := q.droppedIDs()
	if len(ids) != 1 || ids[0] != "R1" {
		t.Fatalf("expected R1 dropped, got %v", ids)
	}
}

func TestCountdownExpiryAutoDeclines(t *testing.T) {
	cfg := fastConfig()
	cfg.OfferWindow = 30 * time.Millisecond // 3 ticks
	q := &fakeQueue{}
	q.set(req("R1"))
	on := atomic.Bool{}
	on.Store(true)
	p := New(cfg, q, &fakeAcceptor{}, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)
	ev := nextEvent(t, ch, EventExpired, time.Second)
	if ev.Request.ID != "R1" {
		t.Fatalf("expired wrong request: %s", ev.Request.ID)
	}
	state, cur, _ := p.Snapshot()
	if state != StateIdle || cur != nil {
		t.Fatal("expected idle after expiry")
	}
	ids := q.droppedIDs()
	if len(ids) != 1 || ids[0] != "R1" {
		t.Fatalf("expected R1 dropped on expiry, got %v", ids)
	}
}

func TestStopCancelsCountdown(t *testing.T) {
	cfg := fastConfig()
	cfg.Tick = 40 * time.Millisecond
	cfg.OfferWindow = 200 * time.Millisecond
	q := &fakeQueue{}
	q.set(req("R1"))
	on := atomic.Bool{}
	on.Store(true)
	p := New(cfg, q, &fakeAcceptor{}, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)

	on.Store(false)
	p.Stop()
	state, cur, _ := p.Snapshot()
	if state != StateIdle || cur != nil {
		t.Fatal("expected idle after stop")
	}
	// no ticks or expiry may be observed once offline
	assertNoEvent(t, ch, []string{EventTick, EventExpired, EventPresented}, 100*time.Millisecond)
}

func TestAcceptCancelsCountdownOnce(t *testing.T) {
	cfg := fastConfig()
	cfg.Tick = 40 * time.Millisecond
	cfg.OfferWindow = 200 * time.Millisecond
	q := &fakeQueue{}
	q.set(req("R1"))
	on := atomic.Bool{}
	on.Store(true)
	acc := &fakeAcceptor{}
	var handedOff atomic.Int64
	p := New(cfg, q, acc, on.Load, func(models.PickupRequest) { handedOff.Add(1) }, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)

	got, err := p.Accept(context.Background())
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if got.ID != "R1" {
		t.Fatalf("accepted wrong request: %s", got.ID)
	}
	nextEvent(t, ch, EventAccepted, time.Second)
	if acc.calls.Load() != 1 {
		t.Fatalf("expected exactly one backend accept, got %d", acc.calls.Load())
	}
	if handedOff.Load() != 1 {
		t.Fatalf("expected exactly one hand-off, got %d", handedOff.Load())
	}
	assertNoEvent(t, ch, []string{EventTick, EventExpired}, 100*time.Millisecond)
}

func TestStopDuringAcceptSkipsHandOff(t *testing.T) {
	q := &fakeQueue{}
	q.set(req("R1"))
	on := atomic.Bool{}
	on.Store(true)
	acc := &blockingAcceptor{started: make(chan struct{}), release: make(chan struct{})}
	var handedOff atomic.Int64
	p := New(fastConfig(), q, acc, on.Load, func(models.PickupRequest) { handedOff.Add(1) }, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Accept(context.Background())
		errCh <- err
	}()
	<-acc.started

	// went offline while the backend claim was in flight
	on.Store(false)
	p.Stop()
	close(acc.release)

	if err := <-errCh; !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	if handedOff.Load() != 0 {
		t.Fatal("hand-off must not run after stop")
	}
	state, cur, _ := p.Snapshot()
	if state != StateIdle || cur != nil {
		t.Fatal("expected idle after stop")
	}
	assertNoEvent(t, ch, []string{EventAccepted}, 50*time.Millisecond)
}

func TestAcceptFailureReturnsToIdleWithoutRequeue(t *testing.T) {
	q := &fakeQueue{}
	q.set(req("R1"))
	on := atomic.Bool{}
	on.Store(true)
	acc := &fakeAcceptor{err: errors.New("already taken")}
	p := New(fastConfig(), q, acc, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)

	if _, err := p.Accept(context.Background()); err == nil {
		t.Fatal("expected accept error to surface")
	}
	state, cur, _ := p.Snapshot()
	if state != StateIdle || cur != nil {
		t.Fatal("expected idle after failed accept")
	}
	ids := q.droppedIDs()
	if len(ids) != 1 || ids[0] != "R1" {
		t.Fatalf("failed accept must not re-queue: %v", ids)
	}
	assertNoEvent(t, ch, []string{EventAccepted}, 50*time.Millisecond)
}

func TestQueueUpdateNeverInterruptsPresentation(t *testing.T) {
	q := &fakeQueue{}
	q.set(req("R1"))
	on := atomic.Bool{}
	on.Store(true)
	cfg := fastConfig()
	cfg.OfferWindow = 500 * time.Millisecond
	p := New(cfg, q, &fakeAcceptor{}, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)

	p.Notify()
	nextEvent(t, ch, EventPresented, time.Second)

	// poll replaced the queue, even with an empty result
	q.set()
	p.Notify()
	state, cur, _ := p.Snapshot()
	if state != StatePresenting || cur == nil || cur.ID != "R1" {
		t.Fatal("active presentation must survive queue updates")
	}
}

func TestAcceptWithoutOfferFails(t *testing.T) {
	q := &fakeQueue{}
	on := atomic.Bool{}
	on.Store(true)
	p := New(fastConfig(), q, &fakeAcceptor{}, on.Load, nil, testLogger())
	if _, err := p.Accept(context.Background()); !errors.Is(err, ErrNoActiveOffer) {
		t.Fatalf("expected ErrNoActiveOffer, got %v", err)
	}
	if p.Decline() {
		t.Fatal("decline with no offer should report false")
	}
}

func TestUnsubscribeIsDeterministic(t *testing.T) {
	q := &fakeQueue{}
	on := atomic.Bool{}
	on.Store(true)
	p := New(fastConfig(), q, &fakeAcceptor{}, on.Load, nil, testLogger())
	id, ch := p.Subscribe()
	p.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	p.Unsubscribe(id) // second call is a no-op
}
