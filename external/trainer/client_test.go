package trainer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/platform/resilience"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

func sampleSet() features.Set {
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	return features.NewSet([]features.Row{
		{MatchID: 1, Date: day, HomeAvgScored: 1.5, Labeled: true, Target: features.OutcomeHomeWin},
		{MatchID: 2, Date: day, AwayForm: -1, Labeled: true, Target: features.OutcomeAwayWin},
		{MatchID: 3, Date: day.AddDate(0, 0, 1)},
	})
}

func TestClient_TrainPostsSet(t *testing.T) {
	t.Parallel()

	var got trainRequest
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"version":"v7","trained_at":"2024-03-02T12:00:00Z","train_rows":1,"held_out_rows":1,"accuracy":0.5,"artifact":"s3://models/v7"}`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{URL: srv.URL + "/train", Token: "t0k", Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)

	snapshot := teamstats.Snapshot{Window: 5, Teams: map[string]teamstats.Stats{"A": {Form: 1}}}
	info, err := client.Train(context.Background(), sampleSet(), snapshot, 0.5)
	require.NoError(t, err)

	assert.Equal(t, "Bearer t0k", auth)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, features.Names, got.FeatureNames)
	assert.InDelta(t, 0.5, got.HeldOut, 1e-9)
	require.Len(t, got.Rows, 2, "only labeled rows are sent")
	assert.Equal(t, "2024-03-02", got.Rows[0].Date)
	assert.Equal(t, 2, got.Rows[1].Target)
	assert.Equal(t, snapshot.Teams, got.TeamStats.Teams)

	assert.Equal(t, usecase.ModelInfo{
		Version:      "v7",
		TrainedAt:    time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
		TrainRows:    1,
		HeldOutRows:  1,
		Accuracy:     0.5,
		ArtifactPath: "s3://models/v7",
	}, info)
}

func TestClient_TrainErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "client error", status: http.StatusBadRequest, body: `{"error":"bad"}`, want: "status=400"},
		{name: "server error", status: http.StatusServiceUnavailable, body: "down", want: "status=503"},
		{name: "missing version", status: http.StatusOK, body: `{"accuracy":1}`, want: "no model version"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client, err := NewClient(ClientConfig{URL: srv.URL}, nil)
			require.NoError(t, err)
			_, err = client.Train(context.Background(), sampleSet(), teamstats.Snapshot{}, 0.2)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestClient_CircuitOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		URL:            srv.URL,
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, OpenTimeout: time.Hour},
	}, nil)
	require.NoError(t, err)

	_, err = client.Train(context.Background(), sampleSet(), teamstats.Snapshot{}, 0.2)
	require.Error(t, err)
	_, err = client.Train(context.Background(), sampleSet(), teamstats.Snapshot{}, 0.2)
	assert.True(t, crerr.Is(err, usecase.ErrDependencyUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_ValidatesURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://host/train", "http://"} {
		_, err := NewClient(ClientConfig{URL: raw}, nil)
		assert.Error(t, err, raw)
	}
}
