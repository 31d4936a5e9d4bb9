package quota

import (
	"context"
	"sync"
)

// MemoryStore is an in-process UsageStore for dry runs and tests
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

// GetMonthlyUsage returns the counter for key, zero when absent
func (m *MemoryStore) GetMonthlyUsage(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

// IncrementMonthlyUsage adds n to key and returns the new value
func (m *MemoryStore) IncrementMonthlyUsage(_ context.Context, key string, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] += n
	return m.counts[key], nil
}

// Set overwrites a counter
func (m *MemoryStore) Set(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] = n
}
