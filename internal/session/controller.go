package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/driver-dispatch/internal/backend"
	"github.com/example/driver-dispatch/internal/config"
	"github.com/example/driver-dispatch/internal/geo"
	"github.com/example/driver-dispatch/internal/ingest"
	"github.com/example/driver-dispatch/internal/location"
	"github.com/example/driver-dispatch/internal/models"
	"github.com/example/driver-dispatch/internal/observability"
	"github.com/example/driver-dispatch/internal/poller"
	"github.com/example/driver-dispatch/internal/presenter"
	"github.com/example/driver-dispatch/internal/relay"
	"github.com/example/driver-dispatch/internal/storage"
)

// Status is the snapshot exposed to the presentation layer.
type Status struct {
	DriverID  string                `json:"driver_id"`
	Online    bool                  `json:"online"`
	SessionID string                `json:"session_id,omitempty"`
	QueueSize int                   `json:"queue_size"`
	State     string                `json:"state"`
	Offer     *models.PickupRequest `json:"offer,omitempty"`
	Remaining int                   `json:"remaining,omitempty"`
	ActiveJob string                `json:"active_job,omitempty"`
}

// Controller owns the DriverSession and candidate queue and coordinates
// the poller, presenter, and relay. Toggling online is the sole trigger
// for starting and stopping the location watch and the poll loop; neither
// runs while offline.
type Controller struct {
	cfg      config.AgentConfig
	backend  backend.API
	source   location.Source
	journal  storage.Journal
	producer *ingest.Producer
	logger   *slog.Logger
	throttle geo.Throttle

	queue *CandidateQueue
	poll  *poller.Poller
	pres  *presenter.Presenter
	rel   *relay.Relay

	// lifecycle serializes the online/offline transitions themselves;
	// mu guards the session fields
	lifecycle sync.Mutex

	mu              sync.Mutex
	online          bool
	sessionID       string
	lastLocation    *models.Coord
	lastHeartbeatAt time.Time
	stopWatch       context.CancelFunc
}

func NewController(cfg config.AgentConfig, api backend.API, src location.Source, journal storage.Journal, producer *ingest.Producer, logger *slog.Logger) *Controller {
	c := &Controller{
		cfg:      cfg,
		backend:  api,
		source:   src,
		journal:  journal,
		producer: producer,
		logger:   logger,
		throttle: geo.Throttle{MinInterval: cfg.HeartbeatMinInterval, MinDistance: cfg.HeartbeatMinDistance},
		queue:    NewCandidateQueue(),
	}
	c.rel = relay.New(api, producer, cfg.DriverID, logger)
	c.pres = presenter.New(presenter.Config{
		OfferWindow:    cfg.OfferWindow,
		Debounce:       cfg.PresentDebounce,
		RedisplayDelay: cfg.RedisplayDelay,
		Tick:           cfg.CountdownTick,
	}, c.queue, api, c.presenterArmed, c.onAccepted, logger)
	c.poll = poller.New(api, cfg.PollInterval, c.IsOnline, c.applyPoll, logger)
	return c
}

func (c *Controller) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// presenterArmed gates new offer presentations: online and not already on
// an active job.
func (c *Controller) presenterArmed() bool {
	if !c.IsOnline() {
		return false
	}
	_, active := c.rel.Active()
	return !active
}

// GoOnline requests location permission, takes one position fix, registers
// the session with the backend, and starts the poll loop and the location
// watch. Any failure leaves the session offline and is surfaced to the
// caller; there is no automatic retry.
func (c *Controller) GoOnline(ctx context.Context) (string, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.online {
		sid := c.sessionID
		c.mu.Unlock()
		return sid, nil
	}
	c.mu.Unlock()

	if err := c.source.RequestPermission(ctx); err != nil {
		return "", err
	}
	loc, err := c.source.Current(ctx)
	if err != nil {
		return "", err
	}
	sid, err := c.backend.SetDriverOnline(ctx, c.cfg.DriverID, loc)
	if err != nil {
		return "", err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	samples, err := c.source.Watch(watchCtx)
	if err != nil {
		cancel()
		// best effort: the backend thinks we are online, undo it
		if derr := c.backend.SetDriverOffline(ctx, c.cfg.DriverID); derr != nil {
			c.logger.Warn("deregister after watch failure failed", "error", derr)
		}
		return "", err
	}

	c.mu.Lock()
	c.online = true
	c.sessionID = sid
	c.lastLocation = &loc
	// the registration call carried the initial fix
	c.lastHeartbeatAt = time.Now()
	c.stopWatch = cancel
	c.mu.Unlock()

	go c.consumeSamples(samples)
	c.poll.Start()
	observability.SessionOnline.Set(1)
	c.pres.Publish(presenter.Event{Type: presenter.EventOnline})
	if err := c.journal.Append(storage.SessionEvent{DriverID: c.cfg.DriverID, SessionID: sid, Kind: storage.EventOnline, At: time.Now()}); err != nil {
		c.logger.Warn("journal append failed", "error", err)
	}
	c.logger.Info("driver online", "driver_id", c.cfg.DriverID, "session_id", sid)
	return sid, nil
}

// GoOffline deregisters with the backend and tears everything down. Offline
// is locally authoritative: even when the backend call fails the local
// session ends, the watch, poller, countdown, and relay all stop, and the
// error is returned for display only. Idempotent.
func (c *Controller) GoOffline(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.online {
		c.mu.Unlock()
		return nil
	}
	sid := c.sessionID
	cancel := c.stopWatch
	c.online = false
	c.sessionID = ""
	c.stopWatch = nil
	c.lastLocation = nil
	c.lastHeartbeatAt = time.Time{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.poll.Stop()
	c.pres.Stop()
	c.rel.Stop()
	c.queue.Reset()
	observability.SessionOnline.Set(0)
	observability.CandidateQueueSize.Set(0)
	c.pres.Publish(presenter.Event{Type: presenter.EventOffline})
	if err := c.journal.Append(storage.SessionEvent{DriverID: c.cfg.DriverID, SessionID: sid, Kind: storage.EventOffline, At: time.Now()}); err != nil {
		c.logger.Warn("journal append failed", "error", err)
	}
	c.logger.Info("driver offline", "driver_id", c.cfg.DriverID, "session_id", sid)

	err := c.backend.SetDriverOffline(ctx, c.cfg.DriverID)
	if err != nil {
		c.logger.Warn("backend deregistration failed, session ended locally", "error", err)
	}
	return err
}

// consumeSamples applies watch samples one at a time so lastLocation always
// reflects arrival order and heartbeat decisions never compare against a
// stale fix.
func (c *Controller) consumeSamples(samples <-chan models.Coord) {
	for loc := range samples {
		c.onLocationSample(loc)
	}
}

func (c *Controller) onLocationSample(loc models.Coord) {
	now := time.Now()
	c.mu.Lock()
	prev := c.lastLocation
	c.lastLocation = &loc
	if !c.online {
		c.mu.Unlock()
		return
	}
	emit := c.throttle.ShouldEmitHeartbeat(prev, loc, c.lastHeartbeatAt, now)
	if emit {
		c.lastHeartbeatAt = now
	}
	c.mu.Unlock()

	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	// every sample reaches an active job relay, unthrottled
	c.rel.Forward(ctx, loc)

	if !emit {
		return
	}
	if err := c.backend.UpdateDriverHeartbeat(ctx, c.cfg.DriverID, loc); err != nil {
		// heartbeats are best-effort, never surfaced
		observability.HeartbeatErrors.Inc()
		c.logger.Warn("heartbeat failed", "error", err)
	} else {
		observability.HeartbeatsSent.Inc()
	}
	if c.producer != nil {
		s := ingest.Sample{DriverID: c.cfg.DriverID, Loc: loc, At: now}
		if err := c.producer.PublishSample(s); err != nil {
			c.logger.Warn("kafka tee failed", "error", err)
		}
	}
}

func (c *Controller) applyPoll(reqs []models.PickupRequest) {
	c.queue.Replace(reqs)
	observability.CandidateQueueSize.Set(float64(c.queue.Len()))
	c.pres.Notify()
}

func (c *Controller) onAccepted(req models.PickupRequest) {
	c.rel.Start(req.ID)
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()
	if err := c.journal.Append(storage.SessionEvent{DriverID: c.cfg.DriverID, SessionID: sid, Kind: storage.EventAccepted, RequestID: req.ID, At: time.Now()}); err != nil {
		c.logger.Warn("journal append failed", "error", err)
	}
	c.logger.Info("job accepted", "request_id", req.ID)
}

// Accept claims the currently presented offer.
func (c *Controller) Accept(ctx context.Context) (models.PickupRequest, error) {
	return c.pres.Accept(ctx)
}

// Decline dismisses the currently presented offer for the session.
func (c *Controller) Decline() bool {
	return c.pres.Decline()
}

// CompleteJob stops the active-job relay once a job finishes and re-arms
// the presenter for waiting candidates.
func (c *Controller) CompleteJob() {
	c.rel.Stop()
	c.pres.Notify()
}

// Subscribe exposes the presenter's event stream.
func (c *Controller) Subscribe() (int, <-chan presenter.Event) { return c.pres.Subscribe() }

func (c *Controller) Unsubscribe(id int) { c.pres.Unsubscribe(id) }

func (c *Controller) Status() Status {
	c.mu.Lock()
	online := c.online
	sid := c.sessionID
	c.mu.Unlock()
	state, offer, remaining := c.pres.Snapshot()
	jobID, active := c.rel.Active()
	st := Status{
		DriverID:  c.cfg.DriverID,
		Online:    online,
		SessionID: sid,
		QueueSize: c.queue.Len(),
		State:     state.String(),
		Offer:     offer,
		Remaining: remaining,
	}
	if active {
		st.ActiveJob = jobID
	}
	return st
}
