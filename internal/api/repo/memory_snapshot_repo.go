package repo

import (
	"context"
	"slices"
	"sync"
)

// MemorySnapshotRepository keeps snapshots in process memory. Used by tests and KV_BACKEND=memory.
type MemorySnapshotRepository struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{values: make(map[string][]byte)}
}

func (slf *MemorySnapshotRepository) Get(_ context.Context, key string) ([]byte, error) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	v, ok := slf.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (slf *MemorySnapshotRepository) Set(_ context.Context, key string, value []byte) error {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.values[key] = slices.Clone(value)
	slf.writes++
	return nil
}

func (slf *MemorySnapshotRepository) Delete(_ context.Context, key string) error {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	delete(slf.values, key)
	return nil
}

// Writes returns how many Set calls were made.
func (slf *MemorySnapshotRepository) Writes() int {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	return slf.writes
}
