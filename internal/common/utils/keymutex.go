package utils

import "sync"

// KeyMutex hands out one mutex per key and frees it once nobody holds it.
type KeyMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex creates an empty KeyMutex.
func NewKeyMutex[K comparable]() *KeyMutex[K] {
	return &KeyMutex[K]{locks: make(map[K]*refMutex)}
}

// Lock blocks until the key is free and returns the matching unlock func.
func (k *KeyMutex[K]) Lock(key K) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &refMutex{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
