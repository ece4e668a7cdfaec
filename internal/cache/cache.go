// Package cache keeps short-lived views of ledger reads keyed by revision.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on a ticker until stopped.
type Manager struct {
	mu     sync.Mutex
	caches []Cleaner
	quit   chan struct{}
	done   chan struct{} // nil until StartCleanup
	once   sync.Once
}

func NewManager() *Manager {
	return &Manager{quit: make(chan struct{})}
}

func (m *Manager) Register(caches ...Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, caches...)
}

// StartCleanup launches the sweeper. Calling it twice has no effect.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	m.done = make(chan struct{})
	go m.sweep(interval, m.done)
}

// CleanNow runs one pass and returns the number of removed entries.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	removed := 0
	for _, c := range caches {
		removed += c.CleanExpired()
	}
	return removed
}

func (m *Manager) sweep(interval time.Duration, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-t.C:
			if n := m.CleanNow(); n > 0 {
				slog.Debug("Expired view cache entries dropped", "count", n)
			}
		}
	}
}

// Stop ends the sweeper and waits for it. Safe to call more than once.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.quit)
		m.mu.Lock()
		done := m.done
		m.mu.Unlock()
		if done != nil {
			<-done
		}
	})
}
