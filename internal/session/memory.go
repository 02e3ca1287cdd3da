package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	state   State
	expires time.Time
}

// MemoryStore keeps sessions in process. Entries older than the TTL read as Idle.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[int64]entry)}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return Idle(), nil
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries, userID)
		return Idle(), nil
	}
	return e.state, nil
}

func (m *MemoryStore) Set(ctx context.Context, userID int64, state State) error {
	if state.IsIdle() {
		return m.Clear(ctx, userID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = entry{state: state, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}
