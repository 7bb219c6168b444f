package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/driver-dispatch/internal/ingest"
	"github.com/example/driver-dispatch/internal/models"
	"github.com/example/driver-dispatch/internal/observability"
)

// Backend is the subset of the backend API the relay needs.
type Backend interface {
	UpdateDriverLocation(ctx context.Context, jobID string, loc models.Coord) error
}

// Relay streams every location sample to the backend scoped to an accepted
// job, with no throttling, until stopped. Errors are logged and never halt
// subsequent relays.
type Relay struct {
	backend  Backend
	producer *ingest.Producer // optional kafka tee
	driverID string
	logger   *slog.Logger

	mu     sync.Mutex
	jobID  string
	active bool
}

func New(b Backend, producer *ingest.Producer, driverID string, logger *slog.Logger) *Relay {
	return &Relay{backend: b, producer: producer, driverID: driverID, logger: logger}
}

// Start scopes the relay to a job. A new Start replaces any prior job.
func (r *Relay) Start(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobID = jobID
	r.active = true
}

// Stop ends the relay. Idempotent.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobID = ""
	r.active = false
}

// Active reports the current job scope.
func (r *Relay) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID, r.active
}

// Forward sends one sample for the active job. A no-op while inactive.
func (r *Relay) Forward(ctx context.Context, loc models.Coord) {
	jobID, ok := r.Active()
	if !ok {
		return
	}
	if err := r.backend.UpdateDriverLocation(ctx, jobID, loc); err != nil {
		observability.RelayErrors.Inc()
		r.logger.Warn("job location relay failed", "job_id", jobID, "error", err)
	} else {
		observability.RelaySamples.Inc()
	}
	if r.producer != nil {
		s := ingest.Sample{DriverID: r.driverID, JobID: jobID, Loc: loc, At: time.Now()}
		if err := r.producer.PublishSample(s); err != nil {
			r.logger.Warn("kafka tee failed", "job_id", jobID, "error", err)
		}
	}
}
