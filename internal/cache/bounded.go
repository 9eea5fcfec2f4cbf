package cache

import "sync"

// BoundedSet is a fixed-capacity set that evicts its oldest entries once
// capacity is exceeded. Eviction is insertion-ordered, not LRU.
type BoundedSet[K comparable] struct {
	mu       sync.Mutex
	capacity int
	order    []K
	members  map[K]struct{}
}

// NewBoundedSet returns a set that holds at most capacity entries.
func NewBoundedSet[K comparable](capacity int) *BoundedSet[K] {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedSet[K]{
		capacity: capacity,
		members:  make(map[K]struct{}, capacity),
	}
}

// Add inserts key and reports whether it was newly added. Adding an existing
// key returns false and does not change eviction order.
func (s *BoundedSet[K]) Add(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[key]; ok {
		return false
	}

	s.members[key] = struct{}{}
	s.order = append(s.order, key)
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	return true
}

// Contains reports whether key is present.
func (s *BoundedSet[K]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[key]
	return ok
}

// Len returns the number of entries currently held.
func (s *BoundedSet[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
