package trainer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/artifact"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

const modelKind = "nearest-centroid"

// Model is the persisted artifact. Features are standardized with the
// training mean and deviation before the distance to each class centroid is
// taken.
type Model struct {
	Kind      string             `json:"kind"`
	Version   string             `json:"version"`
	TrainedAt time.Time          `json:"trained_at"`
	Features  []string           `json:"features"`
	Mean      []float64          `json:"mean"`
	StdDev    []float64          `json:"std_dev"`
	Centroids map[int][]float64  `json:"centroids"`
	Accuracy  float64            `json:"accuracy"`
	TrainRows int                `json:"train_rows"`
	TestRows  int                `json:"held_out_rows"`
	TeamStats teamstats.Snapshot `json:"team_stats"`
	Classes   map[int]int        `json:"class_counts"`
}

// Predict returns the class of the nearest centroid, or -1 for an empty model.
func (m Model) Predict(x []float64) int {
	best, bestDist := -1, math.Inf(1)
	z := m.standardize(x)
	for class := features.OutcomeHomeWin; class <= features.OutcomeAwayWin; class++ {
		centroid, ok := m.Centroids[int(class)]
		if !ok {
			continue
		}
		d := squaredDistance(z, centroid)
		if d < bestDist {
			best, bestDist = int(class), d
		}
	}
	return best
}

func (m Model) standardize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - m.Mean[i]) / m.StdDev[i]
	}
	return out
}

// CentroidTrainer is the local Trainer. It holds out the latest rows for
// evaluation and writes the fitted model to a JSON artifact.
type CentroidTrainer struct {
	file   *artifact.File
	logger *logging.Logger
	now    func() time.Time
}

var _ usecase.Trainer = (*CentroidTrainer)(nil)

func NewCentroidTrainer(file *artifact.File, logger *logging.Logger) *CentroidTrainer {
	if logger == nil {
		logger = logging.Default()
	}
	return &CentroidTrainer{file: file, logger: logger, now: time.Now}
}

func (t *CentroidTrainer) Train(ctx context.Context, set features.Set, snapshot teamstats.Snapshot, heldOut float64) (usecase.ModelInfo, error) {
	if set.Len() < 2 {
		return usecase.ModelInfo{}, fmt.Errorf("%w: need at least 2 labeled rows, got %d", usecase.ErrInvalidInput, set.Len())
	}

	train, test := set.Split(heldOut)
	model := fit(train)
	model.TrainedAt = t.now().UTC()
	model.Version = model.TrainedAt.Format("20060102T150405Z")
	model.TeamStats = snapshot
	model.TestRows = test.Len()
	model.Accuracy = accuracy(model, test)

	if err := t.file.WriteJSON(ctx, model); err != nil {
		return usecase.ModelInfo{}, fmt.Errorf("write model artifact: %w", err)
	}

	t.logger.InfoContext(ctx, "centroid model written",
		"path", t.file.Path(),
		"train_rows", model.TrainRows,
		"held_out_rows", model.TestRows,
		"accuracy", model.Accuracy,
	)
	return usecase.ModelInfo{
		Version:      model.Version,
		TrainedAt:    model.TrainedAt,
		TrainRows:    model.TrainRows,
		HeldOutRows:  model.TestRows,
		Accuracy:     model.Accuracy,
		ArtifactPath: t.file.Path(),
	}, nil
}

// LoadModel reads the last written model. ok is false before the first train.
func LoadModel(ctx context.Context, file *artifact.File) (Model, bool, error) {
	var model Model
	ok, err := file.ReadJSON(ctx, &model)
	return model, ok, err
}

func fit(set features.Set) Model {
	width := len(features.Names)
	model := Model{
		Kind:      modelKind,
		Features:  append([]string(nil), features.Names...),
		Mean:      make([]float64, width),
		StdDev:    make([]float64, width),
		Centroids: map[int][]float64{},
		Classes:   map[int]int{},
		TrainRows: set.Len(),
	}

	n := float64(set.Len())
	for _, x := range set.X {
		for i, v := range x {
			model.Mean[i] += v / n
		}
	}
	for _, x := range set.X {
		for i, v := range x {
			d := v - model.Mean[i]
			model.StdDev[i] += d * d / n
		}
	}
	for i, variance := range model.StdDev {
		model.StdDev[i] = math.Sqrt(variance)
		if model.StdDev[i] == 0 {
			model.StdDev[i] = 1
		}
	}

	for idx, x := range set.X {
		class := set.Y[idx]
		centroid, ok := model.Centroids[class]
		if !ok {
			centroid = make([]float64, width)
			model.Centroids[class] = centroid
		}
		for i, v := range model.standardize(x) {
			centroid[i] += v
		}
		model.Classes[class]++
	}
	for class, centroid := range model.Centroids {
		count := float64(model.Classes[class])
		for i := range centroid {
			centroid[i] /= count
		}
	}
	return model
}

// accuracy is zero for an empty evaluation set.
func accuracy(model Model, test features.Set) float64 {
	if test.Len() == 0 {
		return 0
	}
	hits := 0
	for i, x := range test.X {
		if model.Predict(x) == test.Y[i] {
			hits++
		}
	}
	return float64(hits) / float64(test.Len())
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
