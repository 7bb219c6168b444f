package location

import (
	"context"

	"github.com/example/driver-dispatch/internal/models"
)

// Source abstracts the device geolocation provider: permission gate,
// single-shot fix, and a continuous watch. Constructed and injected rather
// than ambient so tests can substitute fakes.
type Source interface {
	// RequestPermission asks for foreground location access. Returns
	// ErrPermissionDenied if refused.
	RequestPermission(ctx context.Context) error
	// Current returns one position fix.
	Current(ctx context.Context) (models.Coord, error)
	// Watch streams position samples until ctx is cancelled. The returned
	// channel is closed when the watch stops. Samples are delivered in
	// arrival order.
	Watch(ctx context.Context) (<-chan models.Coord, error)
}

var ErrPermissionDenied = &PermissionDeniedError{}

type PermissionDeniedError struct{}

func (e *PermissionDeniedError) Error() string { return "location permission denied" }
