package utils

import (
	"sync"
	"time"
)

// LockedMap holds long-lived per-key state where every key has its own mutex.
// Updates for one key are serialized while different keys proceed in parallel.
type LockedMap[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*lockedEntry[V]
	now     func() time.Time
}

type lockedEntry[V any] struct {
	mu      sync.Mutex
	value   V
	touched time.Time
	removed bool
}

// NewLockedMap creates an empty map. A nil clock defaults to time.Now.
func NewLockedMap[K comparable, V any](clock func() time.Time) *LockedMap[K, V] {
	if clock == nil {
		clock = time.Now
	}

	return &LockedMap[K, V]{
		entries: make(map[K]*lockedEntry[V]),
		now:     clock,
	}
}

// Update runs fn with exclusive access to the value for key, creating it
// with create on first touch. It reports whether the value was created.
func (m *LockedMap[K, V]) Update(key K, create func() V, fn func(V)) bool {
	for {
		entry, created := m.getOrCreate(key, create)

		entry.mu.Lock()
		if entry.removed {
			// Lost a race with Sweep; retry against the fresh entry.
			entry.mu.Unlock()
			continue
		}

		fn(entry.value)
		entry.touched = m.now()
		entry.mu.Unlock()

		return created
	}
}

// View runs fn with exclusive access to an existing value.
// It returns false when the key is unknown.
func (m *LockedMap[K, V]) View(key K, fn func(V)) bool {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return false
	}

	fn(entry.value)

	return true
}

// Range calls fn for every key under that key's lock.
// The set of keys is captured before iteration starts.
func (m *LockedMap[K, V]) Range(fn func(K, V)) {
	m.mu.RLock()
	keys := make([]K, 0, len(m.entries))
	entries := make([]*lockedEntry[V], 0, len(m.entries))
	for key, entry := range m.entries {
		keys = append(keys, key)
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	for i, entry := range entries {
		entry.mu.Lock()
		if !entry.removed {
			fn(keys[i], entry.value)
		}
		entry.mu.Unlock()
	}
}

// Len returns the number of keys.
func (m *LockedMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Sweep evicts keys untouched for longer than maxIdle and returns how many were removed.
// Keys that are busy at sweep time are kept.
func (m *LockedMap[K, V]) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for key, entry := range m.entries {
		if !entry.mu.TryLock() {
			continue
		}

		if entry.touched.Before(cutoff) {
			entry.removed = true
			delete(m.entries, key)
			removed++
		}

		entry.mu.Unlock()
	}

	return removed
}

func (m *LockedMap[K, V]) getOrCreate(key K, create func() V) (*lockedEntry[V], bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if ok {
		return entry, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok {
		return entry, false
	}

	entry = &lockedEntry[V]{value: create(), touched: m.now()}
	m.entries[key] = entry

	return entry, true
}
