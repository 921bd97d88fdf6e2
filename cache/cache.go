// Package cache holds the in-memory mirrors of server-side entities.
//
// A Store maps string IDs to live entity values. It owns the function used to
// materialise raw JSON payloads into entities, so callers hand it wire data
// and get typed values back. Stores are upsert-only: adding an existing key
// replaces the previous value and keeps its original enumeration position.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrCapacity is matched by every *CapacityError.
var ErrCapacity = errors.New("cache capacity exceeded")

// CapacityError is returned by Add when inserting a new key would grow the
// store past its configured maximum.
type CapacityError struct {
	Max int
	Key string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cache capacity exceeded: max %d entries, cannot add %q", e.Max, e.Key)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// Factory builds an entity from its raw wire payload.
type Factory[T any] func(raw json.RawMessage) (T, error)

// Store is a keyed, insertion-ordered entity store.
//
// Replacing an already-present key never counts against the maximum; only
// inserts of new keys can fail with a CapacityError.
type Store[T any] struct {
	factory Factory[T]
	max     int

	mu    sync.RWMutex
	items map[string]T
	order []string
}

// New creates an empty store. max <= 0 means unbounded.
func New[T any](factory Factory[T], max int) *Store[T] {
	return &Store[T]{
		factory: factory,
		max:     max,
		items:   make(map[string]T),
	}
}

// Add materialises raw through the store's factory and stores the result
// under id, replacing any previous value. The new value is returned.
func (s *Store[T]) Add(id string, raw json.RawMessage) (T, error) {
	v, err := s.factory(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("build entity %q: %w", id, err)
	}
	if err := s.Set(id, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Set stores an already-built value under id with the same upsert and
// capacity rules as Add.
func (s *Store[T]) Set(id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		s.items[id] = v
		return nil
	}
	if s.max > 0 && len(s.items) >= s.max {
		return &CapacityError{Max: s.max, Key: id}
	}
	s.items[id] = v
	s.order = append(s.order, id)
	return nil
}

// Get returns the value stored under id and whether it was present.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

// Has reports whether id is present.
func (s *Store[T]) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Remove deletes id and reports whether it existed.
func (s *Store[T]) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, k := range s.order {
		if k == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Values returns a snapshot of every stored value in insertion order.
// Each call builds a fresh slice.
func (s *Store[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Keys returns the stored IDs in insertion order.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of stored entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Max returns the configured maximum (0 = unbounded).
func (s *Store[T]) Max() int { return s.max }
