package backend

import (
	"context"

	"github.com/example/driver-dispatch/internal/models"
)

// API is the semantic contract with the dispatch backend. Transport and
// persistence live behind it; the agent never sees either.
type API interface {
	// SetDriverOnline registers a driver session and returns its id.
	SetDriverOnline(ctx context.Context, driverID string, loc models.Coord) (string, error)
	SetDriverOffline(ctx context.Context, driverID string) error
	// UpdateDriverHeartbeat refreshes the driver's last known position.
	UpdateDriverHeartbeat(ctx context.Context, driverID string, loc models.Coord) error
	GetAvailableRequests(ctx context.Context) ([]models.PickupRequest, error)
	// CheckExpiredRequests sweeps server-side expired requests and returns
	// how many were removed. Advisory only.
	CheckExpiredRequests(ctx context.Context) (int, error)
	// AcceptRequest claims a request for this driver. Fails with
	// ErrAlreadyTaken if another driver got there first.
	AcceptRequest(ctx context.Context, requestID string) error
	// UpdateDriverLocation forwards a location sample scoped to an active job.
	UpdateDriverLocation(ctx context.Context, jobID string, loc models.Coord) error
}

var ErrAlreadyTaken = &AlreadyTakenError{}

type AlreadyTakenError struct{}

func (e *AlreadyTakenError) Error() string { return "request already taken" }
