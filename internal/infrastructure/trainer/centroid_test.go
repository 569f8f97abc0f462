package trainer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/artifact"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

// separableSet alternates strong home sides (home win) with strong away sides
// (away win) so a centroid model separates them perfectly.
func separableSet(n int) features.Set {
	rows := make([]features.Row, 0, n)
	for i := 0; i < n; i++ {
		row := features.Row{MatchID: int64(i + 1), Labeled: true}
		if i%2 == 0 {
			row.HomeAvgScored, row.HomeAvgConceded, row.HomeForm = 3, 0.5, 0.8
			row.AwayAvgScored, row.AwayAvgConceded, row.AwayForm = 0.5, 2.5, -0.6
			row.Target = features.OutcomeHomeWin
		} else {
			row.HomeAvgScored, row.HomeAvgConceded, row.HomeForm = 0.4, 2.8, -0.8
			row.AwayAvgScored, row.AwayAvgConceded, row.AwayForm = 2.9, 0.6, 0.6
			row.Target = features.OutcomeAwayWin
		}
		rows = append(rows, row)
	}
	return features.NewSet(rows)
}

func TestCentroidTrainer_TrainWritesModel(t *testing.T) {
	t.Parallel()

	file := artifact.NewFile(filepath.Join(t.TempDir(), "model.json"))
	tr := NewCentroidTrainer(file, nil)
	tr.now = func() time.Time { return time.Date(2024, 3, 2, 12, 30, 0, 0, time.UTC) }

	snapshot := teamstats.Snapshot{Window: 5, Teams: map[string]teamstats.Stats{"A": {AvgScored: 1}}}
	info, err := tr.Train(context.Background(), separableSet(20), snapshot, 0.2)
	require.NoError(t, err)

	assert.Equal(t, "20240302T123000Z", info.Version)
	assert.Equal(t, 16, info.TrainRows)
	assert.Equal(t, 4, info.HeldOutRows)
	assert.InDelta(t, 1.0, info.Accuracy, 1e-9)
	assert.Equal(t, file.Path(), info.ArtifactPath)

	model, ok, err := LoadModel(context.Background(), file)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, modelKind, model.Kind)
	assert.Equal(t, features.Names, model.Features)
	assert.Len(t, model.Centroids, 2)
	assert.Equal(t, map[int]int{0: 8, 2: 8}, model.Classes)
	assert.Equal(t, snapshot.Teams, model.TeamStats.Teams)
}

func TestCentroidTrainer_RejectsTinySet(t *testing.T) {
	t.Parallel()

	tr := NewCentroidTrainer(artifact.NewFile(filepath.Join(t.TempDir(), "model.json")), nil)
	_, err := tr.Train(context.Background(), separableSet(1), teamstats.Snapshot{}, 0.2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, usecase.ErrInvalidInput))

	_, ok, err := LoadModel(context.Background(), tr.file)
	require.NoError(t, err)
	assert.False(t, ok, "no artifact is written for a rejected set")
}

func TestModel_ConstantFeatureDoesNotDivideByZero(t *testing.T) {
	t.Parallel()

	rows := []features.Row{
		{Labeled: true, HomeAvgScored: 1, Target: features.OutcomeDraw},
		{Labeled: true, HomeAvgScored: 1, Target: features.OutcomeDraw},
	}
	model := fit(features.NewSet(rows))
	for _, sd := range model.StdDev {
		assert.Equal(t, 1.0, sd)
	}
	assert.Equal(t, int(features.OutcomeDraw), model.Predict(make([]float64, len(features.Names))))
}

func TestModel_PredictEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, Model{}.Predict(nil))
}
