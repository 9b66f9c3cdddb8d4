package billing

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and local development. A
// single mutex serializes all reconciliations, which trivially satisfies the
// one-commit-per-transition contract on one node.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]struct{}
	snapshots map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]struct{}),
		snapshots: make(map[string]Snapshot),
	}
}

func (s *MemoryStore) RunAtomic(ctx context.Context, eventID, appUserID string, fn AtomicFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{}
	_, view.EventSeen = s.events[eventID]
	if snap, ok := s.snapshots[appUserID]; ok {
		copied := snap
		view.Snapshot = &copied
	}

	write, err := fn(view)
	if err != nil {
		return err
	}

	if write.MarkEventSeen {
		s.events[eventID] = struct{}{}
	}
	if write.Snapshot != nil {
		s.snapshots[appUserID] = *write.Snapshot
	}
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, appUserID string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[appUserID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	copied := snap
	return &copied, nil
}
