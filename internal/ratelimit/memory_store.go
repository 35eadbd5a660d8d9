package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	windowStart time.Time
	count       int
}

// MemoryCounterStore is an in-process CounterStore for tests and single-node
// deployments. Production multi-process setups must use SQLCounterStore.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewMemoryCounterStore constructs an empty store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: map[string]*memoryCounter{}, now: time.Now}
}

// NewMemoryCounterStoreWithClock injects a clock, for tests.
func NewMemoryCounterStoreWithClock(now func() time.Time) *MemoryCounterStore {
	return &MemoryCounterStore{counters: map[string]*memoryCounter{}, now: now}
}

// Hit implements CounterStore.
func (s *MemoryCounterStore) Hit(_ context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subject + "|" + action
	now := s.now()

	c, ok := s.counters[key]
	if !ok || now.Sub(c.windowStart) >= window {
		s.counters[key] = &memoryCounter{windowStart: now, count: 1}
		return true, nil
	}
	if c.count < limit {
		c.count++
		return true, nil
	}
	return false, nil
}
