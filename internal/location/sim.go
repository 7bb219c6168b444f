package location

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

// SimSource is a bounded random walk around a starting point so the agent
// can run end to end without a GPS device.
type SimSource struct {
	Start    models.Coord
	StepDeg  float64
	Interval time.Duration

	// mu guards pos and rng; a prior watch goroutine may still step the
	// walk briefly after its context is cancelled
	mu  sync.Mutex
	pos models.Coord
	rng *rand.Rand
}

func NewSimSource(start models.Coord, interval time.Duration) *SimSource {
	return &SimSource{
		Start:    start,
		StepDeg:  0.0015, // ~150m per step
		Interval: interval,
		pos:      start,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimSource) RequestPermission(ctx context.Context) error { return nil }

func (s *SimSource) Current(ctx context.Context) (models.Coord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

func (s *SimSource) Watch(ctx context.Context) (<-chan models.Coord, error) {
	out := make(chan models.Coord)
	go func() {
		defer close(out)
		t := time.NewTicker(s.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.mu.Lock()
				s.pos.Lat += (s.rng.Float64() - 0.5) * 2 * s.StepDeg
				s.pos.Lon += (s.rng.Float64() - 0.5) * 2 * s.StepDeg
				next := s.pos
				s.mu.Unlock()
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
