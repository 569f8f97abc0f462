package cache

import (
	"context"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	basecache "github.com/riskibarqy/match-feature-store/internal/platform/cache"
)

const snapshotKey = "teamstats:snapshot"

// SnapshotStore serves repeated reads of the snapshot from memory and drops
// the cached copy on every write.
type SnapshotStore struct {
	next  teamstats.SnapshotStore
	cache *basecache.Store
}

func NewSnapshotStore(next teamstats.SnapshotStore, cache *basecache.Store) *SnapshotStore {
	return &SnapshotStore{next: next, cache: cache}
}

func (s *SnapshotStore) Write(ctx context.Context, snapshot teamstats.Snapshot) error {
	defer s.cache.Delete(ctx, snapshotKey)
	return s.next.Write(ctx, snapshot)
}

// Read serves the cached snapshot while the source's modification time is
// unchanged, so writes from other processes are picked up on the next read.
func (s *SnapshotStore) Read(ctx context.Context) (teamstats.Snapshot, bool, error) {
	current, _, err := s.next.ModifiedAt(ctx)
	if err != nil {
		return teamstats.Snapshot{}, false, err
	}

	cached, err := s.load(ctx)
	if err != nil {
		return teamstats.Snapshot{}, false, err
	}
	if !cached.modifiedAt.Equal(current) {
		s.cache.Delete(ctx, snapshotKey)
		if cached, err = s.load(ctx); err != nil {
			return teamstats.Snapshot{}, false, err
		}
	}
	return cached.value, cached.exists, nil
}

// ModifiedAt is never cached; change detection must see every write.
func (s *SnapshotStore) ModifiedAt(ctx context.Context) (time.Time, bool, error) {
	return s.next.ModifiedAt(ctx)
}

// load stamps the snapshot with the modification time observed before the
// read, so a write racing the load leaves a stale stamp rather than a stale
// snapshot with a fresh one.
func (s *SnapshotStore) load(ctx context.Context) (cachedSnapshot, error) {
	v, err := s.cache.GetOrLoad(ctx, snapshotKey, func(ctx context.Context) (any, error) {
		modifiedAt, _, err := s.next.ModifiedAt(ctx)
		if err != nil {
			return nil, err
		}
		item, exists, err := s.next.Read(ctx)
		if err != nil {
			return nil, err
		}
		return cachedSnapshot{value: item, exists: exists, modifiedAt: modifiedAt}, nil
	})
	if err != nil {
		return cachedSnapshot{}, err
	}

	cached, _ := v.(cachedSnapshot)
	return cached, nil
}

type cachedSnapshot struct {
	value      teamstats.Snapshot
	exists     bool
	modifiedAt time.Time
}
