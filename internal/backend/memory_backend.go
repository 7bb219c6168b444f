package backend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/example/driver-dispatch/internal/models"
)

// MemoryBackend is an in-process Backend used when no real backend is
// configured: local demos and tests. Requests are seeded by the caller.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]string // driverID -> sessionID
	requests map[string]models.PickupRequest
	taken    map[string]string // requestID -> driverID
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions: make(map[string]string),
		requests: make(map[string]models.PickupRequest),
		taken:    make(map[string]string),
	}
}

// Seed adds or replaces an available request.
func (m *MemoryBackend) Seed(r models.PickupRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
}

func (m *MemoryBackend) SetDriverOnline(ctx context.Context, driverID string, loc models.Coord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := newSessionID()
	m.sessions[driverID] = id
	return id, nil
}

func (m *MemoryBackend) SetDriverOffline(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, driverID)
	return nil
}

func (m *MemoryBackend) UpdateDriverHeartbeat(ctx context.Context, driverID string, loc models.Coord) error {
	return nil
}

func (m *MemoryBackend) GetAvailableRequests(ctx context.Context) ([]models.PickupRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PickupRequest, 0, len(m.requests))
	for id, r := range m.requests {
		if _, claimed := m.taken[id]; claimed {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryBackend) CheckExpiredRequests(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for id, r := range m.requests {
		if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
			delete(m.requests, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) AcceptRequest(ctx context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, claimed := m.taken[requestID]; claimed {
		return ErrAlreadyTaken
	}
	if _, ok := m.requests[requestID]; !ok {
		return ErrAlreadyTaken
	}
	m.taken[requestID] = "claimed"
	delete(m.requests, requestID)
	return nil
}

func (m *MemoryBackend) UpdateDriverLocation(ctx context.Context, jobID string, loc models.Coord) error {
	return nil
}

func newSessionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
