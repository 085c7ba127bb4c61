package persistence

import (
	"context"
	"sync"
)

// MemoryPersister is an in-memory Persister keyed by pid -> (tag ->
// bundle), required for tests alongside the on-disk and SQL-backed
// implementations. It is thread-safe and supports concurrent access, but
// naturally loses all state when the process exits.
type MemoryPersister struct {
	mu    sync.RWMutex
	store map[string]map[string]*Bundle // pid -> tag -> bundle
}

// NewMemoryPersister constructs an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{store: make(map[string]map[string]*Bundle)}
}

func (m *MemoryPersister) SaveCheckpoint(_ context.Context, id CheckpointID, bundle *Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags, ok := m.store[id.PID]
	if !ok {
		tags = make(map[string]*Bundle)
		m.store[id.PID] = tags
	}
	tags[id.Tag] = bundle
	return nil
}

func (m *MemoryPersister) LoadCheckpoint(_ context.Context, id CheckpointID) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags, ok := m.store[id.PID]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	b, ok := tags[id.Tag]
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	return b, nil
}

func (m *MemoryPersister) GetCheckpoints(_ context.Context) ([]CheckpointID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []CheckpointID
	for pid, tags := range m.store {
		for tag := range tags {
			ids = append(ids, CheckpointID{PID: pid, Tag: tag})
		}
	}
	return ids, nil
}

func (m *MemoryPersister) GetProcessCheckpoints(_ context.Context, pid string) ([]CheckpointID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags, ok := m.store[pid]
	if !ok {
		return nil, nil
	}
	ids := make([]CheckpointID, 0, len(tags))
	for tag := range tags {
		ids = append(ids, CheckpointID{PID: pid, Tag: tag})
	}
	return ids, nil
}

func (m *MemoryPersister) DeleteCheckpoint(_ context.Context, id CheckpointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags, ok := m.store[id.PID]
	if !ok {
		return nil
	}
	delete(tags, id.Tag)
	if len(tags) == 0 {
		delete(m.store, id.PID)
	}
	return nil
}

func (m *MemoryPersister) DeleteProcessCheckpoints(_ context.Context, pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, pid)
	return nil
}
