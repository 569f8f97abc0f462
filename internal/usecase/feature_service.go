package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// FeatureBuild is one full recomputation over the canonical store.
type FeatureBuild struct {
	Rows     []features.Row
	Set      features.Set
	Snapshot teamstats.Snapshot
	Fallback features.Fallback
	Records  int
}

type FeatureService struct {
	matchRepo    match.Repository
	snapshotRepo teamstats.SnapshotStore
	window       int
	logger       *logging.Logger
	now          func() time.Time
}

func NewFeatureService(
	matchRepo match.Repository,
	snapshotRepo teamstats.SnapshotStore,
	window int,
	logger *logging.Logger,
) *FeatureService {
	if logger == nil {
		logger = logging.Default()
	}
	if window < 1 {
		window = features.DefaultWindow
	}
	return &FeatureService{
		matchRepo:    matchRepo,
		snapshotRepo: snapshotRepo,
		window:       window,
		logger:       logger,
		now:          time.Now,
	}
}

// Build loads every stored match and runs the statistics engine over it.
func (s *FeatureService) Build(ctx context.Context) (FeatureBuild, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FeatureService.Build")
	defer span.End()

	records, err := s.matchRepo.ListOrderedByDate(ctx)
	if err != nil {
		return FeatureBuild{}, fmt.Errorf("list matches for features: %w", err)
	}

	result := features.Compute(records, s.window)
	build := FeatureBuild{
		Rows: result.Rows,
		Set:  features.NewSet(result.Rows),
		Snapshot: teamstats.Snapshot{
			GeneratedAt: s.now().UTC(),
			Window:      result.Window,
			Teams:       result.Snapshot,
		},
		Fallback: result.Fallback,
		Records:  len(records),
	}

	span.SetAttributes(
		attribute.Int("features.records", build.Records),
		attribute.Int("features.labeled", build.Set.Len()),
	)
	s.logger.DebugContext(ctx, "features computed",
		"records", build.Records,
		"rows", len(build.Rows),
		"labeled", build.Set.Len(),
		"teams", len(build.Snapshot.Teams),
	)
	return build, nil
}

// Latest returns the newest limit feature rows, oldest first.
func (s *FeatureService) Latest(ctx context.Context, limit int) ([]features.Row, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FeatureService.Latest")
	defer span.End()

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be > 0", ErrInvalidInput)
	}
	build, err := s.Build(ctx)
	if err != nil {
		return nil, err
	}
	rows := build.Rows
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

// TeamStats returns the serving snapshot written by the last successful
// recompute.
func (s *FeatureService) TeamStats(ctx context.Context) (teamstats.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FeatureService.TeamStats")
	defer span.End()

	snapshot, ok, err := s.snapshotRepo.Read(ctx)
	if err != nil {
		return teamstats.Snapshot{}, fmt.Errorf("%w: read team stats: %v", ErrDependencyUnavailable, err)
	}
	if !ok {
		return teamstats.Snapshot{}, fmt.Errorf("%w: team stats have not been computed yet", ErrNotFound)
	}
	return snapshot, nil
}

func (s *FeatureService) TeamStatsByName(ctx context.Context, team string) (teamstats.Stats, error) {
	team = strings.TrimSpace(team)
	if team == "" {
		return teamstats.Stats{}, fmt.Errorf("%w: team is required", ErrInvalidInput)
	}

	snapshot, err := s.TeamStats(ctx)
	if err != nil {
		return teamstats.Stats{}, err
	}
	stats, ok := snapshot.Lookup(team)
	if !ok {
		return teamstats.Stats{}, fmt.Errorf("%w: team=%s", ErrNotFound, team)
	}
	return stats, nil
}
