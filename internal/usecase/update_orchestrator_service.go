package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UpdateState string

const (
	UpdateStateIdle        UpdateState = "IDLE"
	UpdateStateFetching    UpdateState = "FETCHING"
	UpdateStateMerging     UpdateState = "MERGING"
	UpdateStateRecomputing UpdateState = "RECOMPUTING"
	UpdateStateRetraining  UpdateState = "RETRAINING"
)

const (
	MetaKeyLastCycleAt = "last_cycle_at"

	// MetaKeyRetrainCounter mirrors the in-memory counter: the baseline, then
	// the labeled row count at each retrain.
	MetaKeyRetrainCounter = "retrain_counter"
)

type UpdateOrchestratorConfig struct {
	Interval         time.Duration
	Lookback         time.Duration
	FetchTimeout     time.Duration
	RetrainThreshold int
	HeldOutFraction  float64
}

// CycleMetaStore records operator-facing bookkeeping. It is never read back
// into orchestrator state.
type CycleMetaStore interface {
	Set(ctx context.Context, key, value string) error
}

type CycleResult struct {
	RunID       string      `json:"run_id"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Fetched     int         `json:"fetched"`
	Merge       MergeResult `json:"merge"`
	FeatureRows int         `json:"feature_rows"`
	Labeled     int         `json:"labeled"`
	NewRows     int         `json:"new_rows"`
	Baseline    bool        `json:"baseline"`
	Retrained   bool        `json:"retrained"`
	Model       *ModelInfo  `json:"model,omitempty"`
	TrainError  string      `json:"train_error,omitempty"`
}

type UpdaterStatus struct {
	State          UpdateState  `json:"state"`
	RetrainCounter *int         `json:"retrain_counter"`
	LastCycle      *CycleResult `json:"last_cycle,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	LastFailureAt  *time.Time   `json:"last_failure_at,omitempty"`
}

// UpdateOrchestratorService runs fetch, merge, recompute and the retrain
// decision as one cycle. Cycles never overlap.
type UpdateOrchestratorService struct {
	fetcher      Fetcher
	merger       *MergeService
	featureSvc   *FeatureService
	snapshotRepo teamstats.SnapshotStore
	trainer      Trainer
	meta         CycleMetaStore
	cfg          UpdateOrchestratorConfig
	logger       *logging.Logger
	now          func() time.Time
	newRunID     func() string

	cycleMu sync.Mutex
	// retrainCounter is nil until the first successful cycle; guarded by cycleMu.
	retrainCounter *int

	statusMu sync.RWMutex
	status   UpdaterStatus
}

func NewUpdateOrchestratorService(
	fetcher Fetcher,
	merger *MergeService,
	featureSvc *FeatureService,
	snapshotRepo teamstats.SnapshotStore,
	trainer Trainer,
	meta CycleMetaStore,
	cfg UpdateOrchestratorConfig,
	logger *logging.Logger,
) *UpdateOrchestratorService {
	if fetcher == nil {
		fetcher = NewNoopFetcher()
	}
	if trainer == nil {
		trainer = NewNoopTrainer()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 2 * 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.RetrainThreshold <= 0 {
		cfg.RetrainThreshold = 20
	}
	if cfg.HeldOutFraction <= 0 || cfg.HeldOutFraction >= 1 {
		cfg.HeldOutFraction = 0.2
	}

	return &UpdateOrchestratorService{
		fetcher:      fetcher,
		merger:       merger,
		featureSvc:   featureSvc,
		snapshotRepo: snapshotRepo,
		trainer:      trainer,
		meta:         meta,
		cfg:          cfg,
		logger:       logger.Named("orchestrator"),
		now:          time.Now,
		newRunID:     uuid.NewString,
		status:       UpdaterStatus{State: UpdateStateIdle},
	}
}

// Run performs one cycle immediately and then one per interval until ctx is
// cancelled. A running cycle is always allowed to finish.
func (s *UpdateOrchestratorService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "update orchestrator started",
		"interval", s.cfg.Interval.String(),
		"lookback", s.cfg.Lookback.String(),
		"retrain_threshold", s.cfg.RetrainThreshold,
	)
	s.runScheduled(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("update orchestrator stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.runScheduled(ctx)
		}
	}
}

func (s *UpdateOrchestratorService) runScheduled(ctx context.Context) {
	if _, err := s.RunCycle(ctx); errors.Is(err, ErrCycleInProgress) {
		s.logger.WarnContext(ctx, "skip update cycle, previous cycle still running")
	}
}

func (s *UpdateOrchestratorService) State() UpdateState {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status.State
}

func (s *UpdateOrchestratorService) Status() UpdaterStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	out := s.status
	if out.RetrainCounter != nil {
		v := *out.RetrainCounter
		out.RetrainCounter = &v
	}
	if out.LastCycle != nil {
		c := *out.LastCycle
		out.LastCycle = &c
	}
	return out
}

// RunCycle executes one update cycle. It returns ErrCycleInProgress without
// doing anything when another cycle holds the lock. Cancellation of ctx does
// not interrupt a started cycle.
func (s *UpdateOrchestratorService) RunCycle(ctx context.Context) (CycleResult, error) {
	if !s.cycleMu.TryLock() {
		return CycleResult{}, errors.WithStack(ErrCycleInProgress)
	}
	defer s.cycleMu.Unlock()
	defer s.setState(UpdateStateIdle)

	ctx = context.WithoutCancel(ctx)
	var span trace.Span
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		ctx, span = startUsecaseSpan(ctx, "usecase.UpdateOrchestratorService.RunCycle")
	} else {
		ctx, span = startRootSpan(ctx, "usecase.UpdateOrchestratorService.RunCycle")
	}
	defer span.End()

	result := CycleResult{RunID: s.newRunID(), StartedAt: s.now().UTC()}
	logger := s.logger.With("run_id", result.RunID)
	span.SetAttributes(attribute.String("update.run_id", result.RunID))

	result, err := s.runCycle(ctx, logger, result)
	result.FinishedAt = s.now().UTC()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "update cycle failed", "error", err)
		s.recordFailure(err, result.FinishedAt)
		return result, err
	}

	s.recordSuccess(ctx, logger, result)
	logger.InfoContext(ctx, "update cycle completed",
		"fetched", result.Fetched,
		"inserted", result.Merge.Inserted,
		"backfilled", result.Merge.Backfilled,
		"rejected", result.Merge.Rejected,
		"feature_rows", result.FeatureRows,
		"labeled", result.Labeled,
		"new_rows", result.NewRows,
		"retrained", result.Retrained,
		"duration", result.FinishedAt.Sub(result.StartedAt).String(),
	)
	return result, nil
}

func (s *UpdateOrchestratorService) runCycle(ctx context.Context, logger *logging.Logger, result CycleResult) (CycleResult, error) {
	s.setState(UpdateStateFetching)
	to := match.TruncateDate(s.now())
	from := to.Add(-s.cfg.Lookback)
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	batch, err := s.fetcher.Fetch(fetchCtx, from, to)
	cancel()
	if err != nil {
		return result, markAs(err, ErrFetch, "fetch recent matches")
	}
	result.Fetched = len(batch)
	logger.DebugContext(ctx, "fetched recent matches",
		"from", from.Format(match.DateLayout),
		"to", to.Format(match.DateLayout),
		"count", len(batch),
	)

	s.setState(UpdateStateMerging)
	merged, err := s.merger.Merge(ctx, batch)
	result.Merge = merged
	if err != nil {
		return result, markAs(err, ErrMerge, "merge fetched matches")
	}

	s.setState(UpdateStateRecomputing)
	build, err := s.featureSvc.Build(ctx)
	if err != nil {
		return result, markAs(err, ErrRecompute, "recompute features")
	}
	if err := s.snapshotRepo.Write(ctx, build.Snapshot); err != nil {
		return result, markAs(err, ErrRecompute, "write team stats snapshot")
	}
	result.FeatureRows = len(build.Rows)
	result.Labeled = build.Set.Len()

	total := build.Set.Len()
	if s.retrainCounter == nil {
		baseline := total
		s.retrainCounter = &baseline
		result.Baseline = true
		logger.InfoContext(ctx, "retrain baseline set", "rows", total)
		return result, nil
	}

	result.NewRows = total - *s.retrainCounter
	if result.NewRows < s.cfg.RetrainThreshold {
		return result, nil
	}

	s.setState(UpdateStateRetraining)
	// Advanced before training so a failing trainer is not retried every cycle.
	counter := total
	s.retrainCounter = &counter
	result.Retrained = true

	model, err := s.trainer.Train(ctx, build.Set, build.Snapshot, s.cfg.HeldOutFraction)
	if err != nil {
		err = markAs(err, ErrTrain, "train model")
		result.TrainError = err.Error()
		logger.ErrorContext(ctx, "retrain failed", "rows", total, "error", err)
		return result, nil
	}
	result.Model = &model
	logger.InfoContext(ctx, "model retrained",
		"rows", total,
		"version", model.Version,
		"accuracy", model.Accuracy,
	)
	return result, nil
}

func (s *UpdateOrchestratorService) setState(state UpdateState) {
	s.statusMu.Lock()
	s.status.State = state
	s.statusMu.Unlock()
}

func (s *UpdateOrchestratorService) recordFailure(err error, at time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.LastError = err.Error()
	s.status.LastFailureAt = &at
}

func (s *UpdateOrchestratorService) recordSuccess(ctx context.Context, logger *logging.Logger, result CycleResult) {
	s.statusMu.Lock()
	counter := *s.retrainCounter
	s.status.RetrainCounter = &counter
	s.status.LastCycle = &result
	s.status.LastError = ""
	s.statusMu.Unlock()

	if s.meta == nil {
		return
	}
	if err := s.meta.Set(ctx, MetaKeyLastCycleAt, result.FinishedAt.Format(time.RFC3339)); err != nil {
		logger.WarnContext(ctx, "record cycle meta failed", "key", MetaKeyLastCycleAt, "error", err)
	}
	if result.Retrained || result.Baseline {
		if err := s.meta.Set(ctx, MetaKeyRetrainCounter, strconv.Itoa(counter)); err != nil {
			logger.WarnContext(ctx, "record cycle meta failed", "key", MetaKeyRetrainCounter, "error", err)
		}
	}
}
