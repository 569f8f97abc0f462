package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
)

type SnapshotStore struct {
	mu       sync.RWMutex
	snapshot teamstats.Snapshot
	written  bool
	modified time.Time
	now      func() time.Time
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{now: time.Now}
}

func (s *SnapshotStore) Write(_ context.Context, snapshot teamstats.Snapshot) error {
	teams := make(map[string]teamstats.Stats, len(snapshot.Teams))
	for name, stats := range snapshot.Teams {
		teams[name] = stats
	}
	snapshot.Teams = teams

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.written = true
	s.modified = s.now().UTC()
	return nil
}

func (s *SnapshotStore) Read(_ context.Context) (teamstats.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.written, nil
}

func (s *SnapshotStore) ModifiedAt(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified, s.written, nil
}
