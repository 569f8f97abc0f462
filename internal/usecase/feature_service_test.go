package usecase

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/repository/memory"
	teamstatsmock "github.com/riskibarqy/match-feature-store/internal/mocks/domain/teamstats"
)

func newFeatureFixture(t *testing.T) (*FeatureService, *teamstatsmock.SnapshotStore) {
	t.Helper()

	repo := memory.NewMatchRepository()
	_, err := NewMergeService(repo, nil).Merge(context.Background(), []match.Incoming{
		incoming("2023-01-01", "A", "B", 2, 1),
		incoming("2023-01-02", "A", "C", 1, 1),
		incoming("2023-01-03", "C", "B"),
	})
	require.NoError(t, err)

	snapshots := teamstatsmock.NewSnapshotStore(t)
	return NewFeatureService(repo, snapshots, 5, nil), snapshots
}

func TestFeatureService_Build(t *testing.T) {
	t.Parallel()

	svc, _ := newFeatureFixture(t)
	build, err := svc.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, build.Records)
	require.Len(t, build.Rows, 3)
	assert.Equal(t, 2, build.Set.Len())
	assert.False(t, build.Rows[2].Labeled)
	assert.Equal(t, 5, build.Snapshot.Window)

	stats, ok := build.Snapshot.Lookup("A")
	require.True(t, ok)
	assert.InDelta(t, 1.5, stats.AvgScored, 1e-9)
	assert.InDelta(t, 1.0, stats.AvgConceded, 1e-9)
}

func TestFeatureService_Latest(t *testing.T) {
	t.Parallel()

	svc, _ := newFeatureFixture(t)

	rows, err := svc.Latest(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "C", rows[0].AwayTeam)
	assert.Equal(t, "C", rows[1].HomeTeam)

	rows, err = svc.Latest(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = svc.Latest(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestFeatureService_TeamStats(t *testing.T) {
	t.Parallel()

	t.Run("not computed yet", func(t *testing.T) {
		t.Parallel()
		svc, snapshots := newFeatureFixture(t)
		snapshots.On("Read", mock.Anything).Return(teamstats.Snapshot{}, false, nil).Once()

		_, err := svc.TeamStats(context.Background())
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		svc, snapshots := newFeatureFixture(t)
		snapshots.On("Read", mock.Anything).Return(teamstats.Snapshot{}, false, errors.New("disk gone")).Once()

		_, err := svc.TeamStats(context.Background())
		assert.True(t, errors.Is(err, ErrDependencyUnavailable))
	})

	t.Run("by name", func(t *testing.T) {
		t.Parallel()
		svc, snapshots := newFeatureFixture(t)
		snapshot := teamstats.Snapshot{Window: 5, Teams: map[string]teamstats.Stats{
			"A": {AvgScored: 1.5, AvgConceded: 1, Form: 0.5},
		}}
		snapshots.On("Read", mock.Anything).Return(snapshot, true, nil).Twice()

		stats, err := svc.TeamStatsByName(context.Background(), " A ")
		require.NoError(t, err)
		assert.Equal(t, teamstats.Stats{AvgScored: 1.5, AvgConceded: 1, Form: 0.5}, stats)

		_, err = svc.TeamStatsByName(context.Background(), "Z")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("blank name skips the store", func(t *testing.T) {
		t.Parallel()
		svc, _ := newFeatureFixture(t)

		_, err := svc.TeamStatsByName(context.Background(), "  ")
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})
}
