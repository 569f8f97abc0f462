package teamstats

import (
	"context"
	"time"
)

// SnapshotStore persists the serving snapshot. Write replaces the previous
// snapshot atomically; readers never observe a partial write.
type SnapshotStore interface {
	Write(ctx context.Context, snapshot Snapshot) error
	Read(ctx context.Context) (Snapshot, bool, error)
	ModifiedAt(ctx context.Context) (time.Time, bool, error)
}
