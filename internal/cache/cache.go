// Package cache holds the in-process caches used by the services and the
// manager that sweeps their expired entries.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is the small surface the services need from a cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix drops every key that starts with prefix and returns how
	// many were removed.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is implemented by caches that support an expiry sweep.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on a fixed interval.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the sweep.
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup begins the periodic sweep. Calling it twice is a no-op.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || interval <= 0 {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

// Sweep runs one pass over every registered cache.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("Cache cleanup", "expired", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the sweep and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if !started {
		return
	}
	close(m.stopCleanup)
	<-m.cleanupDone
}
