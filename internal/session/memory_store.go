package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-node development.
type MemoryStore struct {
	mu        sync.Mutex
	queued    map[string]bool
	snapshots map[string]*Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queued:    make(map[string]bool),
		snapshots: make(map[string]*Snapshot),
	}
}

func (s *MemoryStore) SetGradingQueued(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[userID] = true
	return nil
}

func (s *MemoryStore) ConsumeGradingQueued(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.queued[userID]
	delete(s.queued, userID)
	return queued, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snap
	s.snapshots[snap.AttemptID] = &copied
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, attemptID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[attemptID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	copied := *snap
	return &copied, nil
}

func (s *MemoryStore) DeleteSnapshot(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, attemptID)
	return nil
}
