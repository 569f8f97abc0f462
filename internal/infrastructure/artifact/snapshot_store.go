package artifact

import (
	"context"

	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
)

// SnapshotStore keeps the team statistics snapshot in a JSON file.
type SnapshotStore struct {
	*File
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{File: NewFile(path)}
}

func (s *SnapshotStore) Write(ctx context.Context, snapshot teamstats.Snapshot) error {
	if snapshot.Teams == nil {
		snapshot.Teams = map[string]teamstats.Stats{}
	}
	return s.WriteJSON(ctx, snapshot)
}

func (s *SnapshotStore) Read(ctx context.Context) (teamstats.Snapshot, bool, error) {
	var out teamstats.Snapshot
	ok, err := s.ReadJSON(ctx, &out)
	if err != nil || !ok {
		return teamstats.Snapshot{}, false, err
	}
	return out, true, nil
}
