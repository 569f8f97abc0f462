package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	qb "github.com/riskibarqy/match-feature-store/internal/platform/querybuilder"
)

// snapshotHeaderKey is the meta row written with every snapshot, so a
// snapshot with no teams is still distinguishable from none at all.
const snapshotHeaderKey = "team_stats_snapshot"

type snapshotHeader struct {
	GeneratedAt string `json:"generated_at"`
	Window      int    `json:"window"`
}

// SnapshotRepository keeps the serving team statistics in a table. Each write
// replaces every row and the meta header in one transaction.
type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Write(ctx context.Context, snapshot teamstats.Snapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.DeleteFrom(snapshotsTable).ToSQL()
	if err != nil {
		return fmt.Errorf("build clear snapshot query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	generatedAt := snapshot.GeneratedAt.UTC().Format(time.RFC3339Nano)
	for _, team := range snapshot.TeamNames() {
		stats := snapshot.Teams[team]
		query, args, err := qb.InsertModel(snapshotsTable, teamStatSnapshotTableModel{
			Team:        team,
			AvgScored:   stats.AvgScored,
			AvgConceded: stats.AvgConceded,
			Form:        stats.Form,
			WindowSize:  snapshot.Window,
			GeneratedAt: generatedAt,
		}, "")
		if err != nil {
			return fmt.Errorf("build insert snapshot row query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("insert snapshot row team=%s: %w", team, err)
		}
	}

	header, err := sonic.Marshal(snapshotHeader{GeneratedAt: generatedAt, Window: snapshot.Window})
	if err != nil {
		return fmt.Errorf("encode snapshot header: %w", err)
	}
	if err := setMeta(ctx, tx, snapshotHeaderKey, string(header)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Read(ctx context.Context) (teamstats.Snapshot, bool, error) {
	generatedAt, window, ok, err := r.header(ctx)
	if err != nil || !ok {
		return teamstats.Snapshot{}, false, err
	}

	query, args, err := qb.Select(qb.Columns(teamStatSnapshotTableModel{})...).
		From(snapshotsTable).
		OrderBy("team").
		ToSQL()
	if err != nil {
		return teamstats.Snapshot{}, false, fmt.Errorf("build select snapshot query: %w", err)
	}

	var rows []teamStatSnapshotTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return teamstats.Snapshot{}, false, fmt.Errorf("select snapshot: %w", err)
	}

	out := teamstats.Snapshot{
		GeneratedAt: generatedAt,
		Window:      window,
		Teams:       make(map[string]teamstats.Stats, len(rows)),
	}
	for _, row := range rows {
		out.Teams[row.Team] = teamstats.Stats{
			AvgScored:   row.AvgScored,
			AvgConceded: row.AvgConceded,
			Form:        row.Form,
		}
	}
	return out, true, nil
}

// ModifiedAt reports the generation time of the stored snapshot.
func (r *SnapshotRepository) ModifiedAt(ctx context.Context) (time.Time, bool, error) {
	generatedAt, _, ok, err := r.header(ctx)
	return generatedAt, ok, err
}

func (r *SnapshotRepository) header(ctx context.Context) (time.Time, int, bool, error) {
	raw, ok, err := getMeta(ctx, r.db, snapshotHeaderKey)
	if err != nil || !ok {
		return time.Time{}, 0, false, err
	}

	var header snapshotHeader
	if err := sonic.UnmarshalString(raw, &header); err != nil {
		return time.Time{}, 0, false, fmt.Errorf("decode snapshot header: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, header.GeneratedAt)
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("parse snapshot generated_at %q: %w", header.GeneratedAt, err)
	}
	return ts.UTC(), header.Window, true, nil
}
