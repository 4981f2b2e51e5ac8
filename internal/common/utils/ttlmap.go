package utils

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLMap provides a thread-safe map with expiring entries.
// Expired entries are invisible to readers and removed by a background sweep.
type TTLMap[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewTTLMap creates a new TTLMap with the specified TTL duration.
func NewTTLMap[K comparable, V any](ttl time.Duration) *TTLMap[K, V] {
	m := &TTLMap[K, V]{
		entries: make(map[K]ttlEntry[V]),
		ttl:     ttl,
		done:    make(chan struct{}),
	}

	go m.sweepLoop()

	return m
}

// Get returns the value for key if it exists and has not expired.
func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set stores value and restarts its TTL.
func (m *TTLMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = ttlEntry[V]{value: value, expiresAt: time.Now().Add(m.ttl)}
}

// Delete removes a key from the map.
func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Len returns the number of live entries.
func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	count := 0

	for _, e := range m.entries {
		if !now.After(e.expiresAt) {
			count++
		}
	}

	return count
}

// Sweep drops expired entries and returns how many were removed.
func (m *TTLMap[K, V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0

	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}

	return removed
}

// Close stops the background sweep. The map stays usable.
func (m *TTLMap[K, V]) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *TTLMap[K, V]) sweepLoop() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
