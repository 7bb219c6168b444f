package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/driver-dispatch/internal/models"
	"github.com/example/driver-dispatch/internal/observability"
)

// Backend is the subset of the backend API the poller needs.
type Backend interface {
	GetAvailableRequests(ctx context.Context) ([]models.PickupRequest, error)
	CheckExpiredRequests(ctx context.Context) (int, error)
}

// Poller periodically fetches available requests while the session is
// online. Results replace the candidate source wholesale; a failed poll
// leaves the previous list untouched so already-displayed candidates do
// not flicker away.
type Poller struct {
	backend  Backend
	interval time.Duration
	online   func() bool
	apply    func([]models.PickupRequest)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(b Backend, interval time.Duration, online func() bool, apply func([]models.PickupRequest), logger *slog.Logger) *Poller {
	return &Poller{backend: b, interval: interval, online: online, apply: apply, logger: logger}
}

// Start begins the poll loop with an immediate first poll. Idempotent.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop cancels the loop; no further polls execute after it returns.
// Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
}

func (p *Poller) loop(ctx context.Context) {
	p.pollOnce(ctx)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	// A tick can race the offline transition; an offline session makes the
	// tick a no-op.
	if !p.online() {
		return
	}
	if n, err := p.backend.CheckExpiredRequests(ctx); err != nil {
		p.logger.Warn("expiry sweep failed", "error", err)
	} else if n > 0 {
		p.logger.Debug("expired requests swept", "count", n)
	}
	reqs, err := p.backend.GetAvailableRequests(ctx)
	observability.PollsTotal.Inc()
	if err != nil {
		observability.PollErrors.Inc()
		p.logger.Warn("poll failed, keeping previous candidates", "error", err)
		return
	}
	if !p.online() {
		return
	}
	p.apply(reqs)
}
