package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/repository/memory"
)

var cycleNow = time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)

type stubFetcher struct {
	mu      sync.Mutex
	batches [][]match.Incoming
	err     error
	calls   int
	from    time.Time
	to      time.Time
	block   func(ctx context.Context) error
}

func (f *stubFetcher) Fetch(ctx context.Context, from, to time.Time) ([]match.Incoming, error) {
	f.mu.Lock()
	f.calls++
	f.from, f.to = from, to
	block := f.block
	f.mu.Unlock()

	if block != nil {
		if err := block(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *stubFetcher) push(batch []match.Incoming) {
	f.mu.Lock()
	f.batches = append(f.batches, batch)
	f.mu.Unlock()
}

type stubTrainer struct {
	calls   int
	lastLen int
	heldOut float64
	err     error
}

func (t *stubTrainer) Train(_ context.Context, set features.Set, _ teamstats.Snapshot, heldOut float64) (ModelInfo, error) {
	t.calls++
	t.lastLen = set.Len()
	t.heldOut = heldOut
	if t.err != nil {
		return ModelInfo{}, t.err
	}
	return ModelInfo{Version: fmt.Sprintf("v%d", t.calls), TrainRows: set.Len()}, nil
}

type stubMeta struct {
	values map[string]string
}

func (m *stubMeta) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type failingSnapshotStore struct {
	*memory.SnapshotStore
	fail bool
}

func (s *failingSnapshotStore) Write(ctx context.Context, snapshot teamstats.Snapshot) error {
	if s.fail {
		return errInjected
	}
	return s.SnapshotStore.Write(ctx, snapshot)
}

// finalBatch returns n final fixtures on consecutive days starting at offset.
func finalBatch(offset, n int) []match.Incoming {
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]match.Incoming, 0, n)
	for i := offset; i < offset+n; i++ {
		out = append(out, match.Incoming{
			Date:      start.AddDate(0, 0, i).Format(match.DateLayout),
			HomeTeam:  fmt.Sprintf("Team %d", i%6),
			AwayTeam:  fmt.Sprintf("Team %d", (i+1)%6),
			HomeScore: match.IntPtr(i % 3),
			AwayScore: match.IntPtr((i + 1) % 2),
		})
	}
	return out
}

type orchestratorFixture struct {
	repo      *failingMatchRepo
	snapshots *failingSnapshotStore
	fetcher   *stubFetcher
	trainer   *stubTrainer
	meta      *stubMeta
	svc       *UpdateOrchestratorService
}

func newOrchestratorFixture(t *testing.T, cfg UpdateOrchestratorConfig) *orchestratorFixture {
	t.Helper()

	f := &orchestratorFixture{
		repo:      &failingMatchRepo{MatchRepository: memory.NewMatchRepository()},
		snapshots: &failingSnapshotStore{SnapshotStore: memory.NewSnapshotStore()},
		fetcher:   &stubFetcher{},
		trainer:   &stubTrainer{},
		meta:      &stubMeta{},
	}
	merger := NewMergeService(f.repo, nil)
	featureSvc := NewFeatureService(f.repo, f.snapshots, 5, nil)
	f.svc = NewUpdateOrchestratorService(f.fetcher, merger, featureSvc, f.snapshots, f.trainer, f.meta, cfg, nil)
	f.svc.now = func() time.Time { return cycleNow }
	runs := 0
	f.svc.newRunID = func() string {
		runs++
		return fmt.Sprintf("run-%d", runs)
	}
	return f
}

func TestUpdateOrchestrator_RetrainTrigger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{RetrainThreshold: 20})

	f.fetcher.push(finalBatch(0, 100))
	first, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, first.Baseline)
	assert.False(t, first.Retrained)
	assert.Equal(t, 100, first.Labeled)
	require.NotNil(t, f.svc.Status().RetrainCounter)
	assert.Equal(t, 100, *f.svc.Status().RetrainCounter)
	assert.Equal(t, "100", f.meta.values[MetaKeyRetrainCounter], "baseline is recorded as the counter")

	f.fetcher.push(finalBatch(100, 19))
	second, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, second.NewRows)
	assert.False(t, second.Retrained)
	assert.Zero(t, f.trainer.calls)
	assert.Equal(t, 100, *f.svc.Status().RetrainCounter)

	f.fetcher.push(finalBatch(119, 1))
	third, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, third.NewRows)
	assert.True(t, third.Retrained)
	require.NotNil(t, third.Model)
	assert.Equal(t, 1, f.trainer.calls)
	assert.Equal(t, 120, f.trainer.lastLen)
	assert.InDelta(t, 0.2, f.trainer.heldOut, 1e-9)
	assert.Equal(t, 120, *f.svc.Status().RetrainCounter)
	assert.Equal(t, "120", f.meta.values[MetaKeyRetrainCounter])

	fourth, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, fourth.NewRows)
	assert.False(t, fourth.Retrained)
	assert.Equal(t, UpdateStateIdle, f.svc.State())
}

func TestUpdateOrchestrator_PendingRowsDoNotCountTowardsRetrain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{RetrainThreshold: 2})

	_, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)

	f.fetcher.push([]match.Incoming{
		{Date: "2024-03-09", HomeTeam: "A", AwayTeam: "B"},
		{Date: "2024-03-10", HomeTeam: "C", AwayTeam: "D"},
	})
	result, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FeatureRows)
	assert.Zero(t, result.Labeled)
	assert.False(t, result.Retrained)
}

func TestUpdateOrchestrator_TrainFailureStillAdvancesCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{RetrainThreshold: 5})
	f.trainer.err = errors.New("trainer exploded")

	_, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)

	f.fetcher.push(finalBatch(0, 5))
	result, err := f.svc.RunCycle(ctx)
	require.NoError(t, err, "a failed retrain does not fail the cycle")
	assert.True(t, result.Retrained)
	assert.Nil(t, result.Model)
	assert.Contains(t, result.TrainError, "trainer exploded")
	assert.Equal(t, 5, *f.svc.Status().RetrainCounter)

	again, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.False(t, again.Retrained)
	assert.Equal(t, 1, f.trainer.calls)
}

func TestUpdateOrchestrator_FetchFailureMutatesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{})
	f.fetcher.err = errors.New("connection refused")

	_, err := f.svc.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.False(t, errors.Is(err, ErrMerge))

	total, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	_, written, err := f.snapshots.Read(ctx)
	require.NoError(t, err)
	assert.False(t, written)

	status := f.svc.Status()
	assert.Nil(t, status.RetrainCounter)
	assert.Contains(t, status.LastError, "connection refused")
	assert.Equal(t, UpdateStateIdle, status.State)

	// Self-heals at the next cycle.
	f.fetcher.err = nil
	f.fetcher.push(finalBatch(0, 3))
	result, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, result.Baseline)
	assert.Empty(t, f.svc.Status().LastError)
}

func TestUpdateOrchestrator_FetchWindowAndTimeout(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{FetchTimeout: 20 * time.Millisecond})
	f.fetcher.block = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	// A cancelled caller does not abort the cycle; only the fetch timeout does.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), f.fetcher.to)
	assert.Equal(t, time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), f.fetcher.from)
}

func TestUpdateOrchestrator_MergeFailureAbortsBeforeRecompute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{})
	f.repo.failBegin = true
	f.fetcher.push(finalBatch(0, 2))

	_, err := f.svc.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMerge))

	_, written, err := f.snapshots.Read(ctx)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Nil(t, f.svc.Status().RetrainCounter)
}

func TestUpdateOrchestrator_RecomputeFailureKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{})

	f.fetcher.push(finalBatch(0, 3))
	_, err := f.svc.RunCycle(ctx)
	require.NoError(t, err)
	before, ok, err := f.snapshots.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	f.snapshots.fail = true
	f.fetcher.push(finalBatch(3, 3))
	_, err = f.svc.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecompute))

	after, ok, err := f.snapshots.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after)

	f.snapshots.fail = false
	f.repo.failList = true
	_, err = f.svc.RunCycle(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecompute))
}

func TestUpdateOrchestrator_SkipsOverlappingCycles(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{})
	entered := make(chan struct{})
	release := make(chan struct{})
	f.fetcher.block = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.RunCycle(context.Background())
		done <- err
	}()

	<-entered
	assert.Equal(t, UpdateStateFetching, f.svc.State())
	_, err := f.svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleInProgress))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.Equal(t, UpdateStateIdle, f.svc.State())
}

func TestUpdateOrchestrator_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, UpdateOrchestratorConfig{Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	seen := make(chan struct{})
	f.fetcher.block = func(context.Context) error {
		f.fetcher.mu.Lock()
		calls := f.fetcher.calls
		f.fetcher.mu.Unlock()
		if calls >= 3 {
			once.Do(func() { close(seen) })
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not tick")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
	assert.NotEmpty(t, f.meta.values[MetaKeyLastCycleAt])
}
