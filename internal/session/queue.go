package session

import (
	"sync"

	"github.com/example/driver-dispatch/internal/models"
)

// CandidateQueue is the FIFO of pickup requests eligible to show to the
// driver. It also remembers every id dropped this session so a declined
// request is never re-offered before the next session, even when the
// backend keeps returning it.
type CandidateQueue struct {
	mu       sync.Mutex
	items    []models.PickupRequest
	declined map[string]struct{}
}

func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{declined: make(map[string]struct{})}
}

// Replace swaps the queue contents wholesale with the latest poll results,
// filtering ids already dropped this session. Stale entries absent from the
// backend response disappear.
func (q *CandidateQueue) Replace(reqs []models.PickupRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]models.PickupRequest, 0, len(reqs))
	for _, r := range reqs {
		if _, dropped := q.declined[r.ID]; dropped {
			continue
		}
		items = append(items, r)
	}
	q.items = items
}

func (q *CandidateQueue) Head() (models.PickupRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.PickupRequest{}, false
	}
	return q.items[0], true
}

// Drop removes a request and records it in the session dedup set.
func (q *CandidateQueue) Drop(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.declined[id] = struct{}{}
	for i, r := range q.items {
		if r.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
}

func (q *CandidateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset clears both the queue and the dedup set; called when a session
// ends so the next session starts with a clean decline window.
func (q *CandidateQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.declined = make(map[string]struct{})
}
