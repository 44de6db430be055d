package ledger

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count       int
	lastFailure time.Time
}

// Memory is an in-process ledger backed by a mutex-guarded map. Expired
// windows are reset lazily on the next increment rather than by a sweeper.
type Memory struct {
	mu      sync.Mutex
	records map[string]*record
	window  time.Duration
	now     func() time.Time
}

// NewMemory creates a [Memory] ledger. window is how long a failure streak
// stays live measured from its last failure; 0 keeps counts forever. now
// defaults to [time.Now].
func NewMemory(window time.Duration, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		records: make(map[string]*record),
		window:  window,
		now:     now,
	}
}

func (m *Memory) GetAttempts(_ context.Context, principal string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[principal]
	if !ok {
		return 0, nil
	}
	if m.expired(r) {
		return 0, nil
	}
	return r.count, nil
}

func (m *Memory) IncrementAttempts(_ context.Context, principal string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	r, ok := m.records[principal]
	if !ok || m.expired(r) {
		r = &record{}
		m.records[principal] = r
	}

	r.count++
	r.lastFailure = now
	return r.count, nil
}

func (m *Memory) ResetAttempts(_ context.Context, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, principal)
	return nil
}

func (m *Memory) LastAttemptTime(_ context.Context, principal string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[principal]
	if !ok || m.expired(r) {
		return time.Time{}, false, nil
	}
	return r.lastFailure, true, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]*record)
	return nil
}

func (m *Memory) expired(r *record) bool {
	if m.window <= 0 {
		return false
	}
	return m.now().Sub(r.lastFailure) >= m.window
}
