package lock

import (
	"sync"
	"time"
)

// Info describes a currently held lock for diagnostics.
type Info struct {
	Key   string `json:"key"`
	AgeMs int64  `json:"age_ms"`
}

type entry struct {
	acquiredAt time.Time
	timer      *time.Timer
}

// Manager is an in-process mutual-exclusion map with auto-expiring holds.
// Acquire never blocks: it reports busy immediately, and a crashed holder
// cannot starve a key past its TTL. State is process-local; cross-instance
// correctness rests on the repository's compare-and-swap updates.
type Manager struct {
	mu   sync.Mutex
	held map[string]*entry
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{held: make(map[string]*entry)}
}

// Acquire takes the lock for key if it is free, scheduling an automatic
// release after ttl. Returns false immediately when the key is busy; callers
// must treat that as "operation already in progress", not as a failure.
func (m *Manager) Acquire(key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return false
	}
	e := &entry{acquiredAt: time.Now()}
	e.timer = time.AfterFunc(ttl, func() {
		m.expire(key, e)
	})
	m.held[key] = e
	return true
}

// Release frees the lock and cancels the scheduled auto-release.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.held[key]; ok {
		e.timer.Stop()
		delete(m.held, key)
	}
}

// expire removes the entry only if it is still the one the timer was armed
// for, so a release-then-reacquire cannot be dropped by a stale timer.
func (m *Manager) expire(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.held[key]; ok && cur == e {
		delete(m.held, key)
	}
}

// ListActive returns the currently held locks with their ages.
func (m *Manager) ListActive() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	infos := make([]Info, 0, len(m.held))
	for key, e := range m.held {
		infos = append(infos, Info{Key: key, AgeMs: now.Sub(e.acquiredAt).Milliseconds()})
	}
	return infos
}
