package storage

import (
	"sync"
	"time"
)

// Event kinds recorded in the session journal.
const (
	EventOnline   = "online"
	EventOffline  = "offline"
	EventAccepted = "accepted"
)

// SessionEvent is one row in the driver's session history.
type SessionEvent struct {
	DriverID  string
	SessionID string
	Kind      string
	RequestID string // set for accepted events
	At        time.Time
}

// Journal persists session lifecycle events. Failures here never block the
// session flow; callers log and continue.
type Journal interface {
	Append(e SessionEvent) error
}

type MemoryJournal struct {
	mu     sync.RWMutex
	events []SessionEvent
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) Append(e SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryJournal) Events() []SessionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionEvent, len(m.events))
	copy(out, m.events)
	return out
}
