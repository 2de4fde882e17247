package adapter

import (
	"context"
	"sync"
)

// Store abstracts the crash-surviving key-value storage that holds the shared
// timer record. Each call is atomic on its own; there is no cross-call
// transaction, so callers must tolerate interleaved writers.
//
// T represents the type of values stored in the adapter.
type Store[T any] interface {
	// Get retrieves the value for a key from the storage.
	// The boolean return indicates whether the key was found.
	Get(ctx context.Context, key string) (T, bool, error)
	// Set stores the value for a key into the storage, replacing any
	// previous value.
	Set(ctx context.Context, key string, value T) error
	// Keys returns the list of keys available in the store.
	Keys(ctx context.Context) ([]string, error)
}

// InMemoryStore is a Store backed by a map. It is shared only within one
// process and is used for tests and as the degraded fallback.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewInMemoryStore returns a new InMemoryStore.
func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{items: make(map[string]T)}
}

// Get implements Store.Get.
func (s *InMemoryStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false, nil
	}
	return v, true, nil
}

// Set implements Store.Set.
func (s *InMemoryStore[T]) Set(ctx context.Context, key string, value T) error {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	return nil
}

// Keys implements Store.Keys.
func (s *InMemoryStore[T]) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	return keys, nil
}
