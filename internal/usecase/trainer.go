package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
)

// Fetcher pulls recent fixtures from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context, from, to time.Time) ([]match.Incoming, error)
}

// ModelInfo describes the outcome of one training run.
type ModelInfo struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	TrainRows    int       `json:"train_rows"`
	HeldOutRows  int       `json:"held_out_rows"`
	Accuracy     float64   `json:"accuracy"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
}

// Trainer fits a downstream model. The model itself is opaque here.
type Trainer interface {
	Train(ctx context.Context, set features.Set, snapshot teamstats.Snapshot, heldOut float64) (ModelInfo, error)
}

type noopTrainer struct{}

func (noopTrainer) Train(_ context.Context, set features.Set, _ teamstats.Snapshot, _ float64) (ModelInfo, error) {
	return ModelInfo{Version: "noop", TrainRows: set.Len()}, nil
}

func NewNoopTrainer() Trainer {
	return noopTrainer{}
}

type noopFetcher struct{}

func (noopFetcher) Fetch(_ context.Context, _, _ time.Time) ([]match.Incoming, error) {
	return nil, nil
}

// NewNoopFetcher is used when no provider is configured; cycles then only
// recompute over what is already stored.
func NewNoopFetcher() Fetcher {
	return noopFetcher{}
}
