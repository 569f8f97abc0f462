package footballdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/platform/resilience"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

const samplePayload = `{
  "matches": [
    {
      "id": 1,
      "utcDate": "2024-03-02T19:45:00Z",
      "status": "FINISHED",
      "homeTeam": {"id": 57, "name": "Arsenal FC", "shortName": "Arsenal"},
      "awayTeam": {"id": 61, "name": "", "shortName": "Chelsea"},
      "score": {"fullTime": {"home": 2, "away": 1}},
      "competition": {"id": 2021, "name": "Premier League", "code": "PL"}
    },
    {
      "id": 2,
      "utcDate": "2024-03-03T23:30:00-03:00",
      "status": "SCHEDULED",
      "homeTeam": {"id": 90},
      "awayTeam": {"id": 91, "name": "Real Betis"},
      "score": {"fullTime": {"home": null, "away": null}},
      "competition": {"id": 2014}
    },
    {
      "id": 3,
      "utcDate": "not-a-date",
      "homeTeam": {"name": "X"},
      "awayTeam": {"name": "Y"},
      "score": {"fullTime": {"home": 0, "away": 0}},
      "competition": {}
    },
    {
      "id": 4,
      "utcDate": "2024-03-03T15:00:00Z",
      "status": "IN_PLAY",
      "homeTeam": {"name": "Liverpool FC"},
      "awayTeam": {"name": "Everton FC"},
      "score": {"fullTime": {"home": 1, "away": 0}},
      "competition": {"id": 2021, "name": "Premier League"}
    },
    {
      "id": 5,
      "utcDate": "2024-03-03T12:30:00Z",
      "status": "AWARDED",
      "homeTeam": {"name": "Girona FC"},
      "awayTeam": {"name": "Cadiz CF"},
      "score": {"fullTime": {"home": 3, "away": 0}},
      "competition": {"id": 2014, "name": "Primera Division"}
    }
  ]
}`

func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*ClientConfig)) *Client {
	t.Helper()
	cfg := ClientConfig{
		HTTPClient:    srv.Client(),
		BaseURL:       srv.URL,
		Token:         "secret-token",
		MaxRetries:    2,
		RetryBackoff:  time.Millisecond,
		RatePerMinute: 60000,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client := NewClient(cfg)
	client.now = func() time.Time { return time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC) }
	return client
}

func TestClient_FetchMapsFixtures(t *testing.T) {
	t.Parallel()

	var gotQuery, gotToken, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("X-Auth-Token")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	got, err := client.Fetch(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, "/matches", gotPath)
	assert.Equal(t, "dateFrom=2024-03-01&dateTo=2024-03-03", gotQuery)
	assert.Equal(t, "secret-token", gotToken)

	require.Len(t, got, 5)
	assert.Equal(t, match.Incoming{
		Date:      "2024-03-02",
		HomeTeam:  "Arsenal FC",
		AwayTeam:  "Chelsea",
		HomeScore: match.IntPtr(2),
		AwayScore: match.IntPtr(1),
		League:    "Premier League",
	}, got[0])

	assert.Equal(t, "2024-03-03", got[1].Date, "offset dates keep their own calendar day")
	assert.Equal(t, "90", got[1].HomeTeam)
	assert.Equal(t, "Real Betis", got[1].AwayTeam)
	assert.Nil(t, got[1].HomeScore)
	assert.Nil(t, got[1].AwayScore)
	assert.Equal(t, "2014", got[1].League)

	assert.Equal(t, "2024-03-05", got[2].Date, "unparsable dates fall back to today")
	assert.Equal(t, match.DefaultLeague, got[2].League)
	assert.Nil(t, got[2].HomeScore, "scores without a final status are unknown")

	assert.Equal(t, "Liverpool FC", got[3].HomeTeam)
	assert.Nil(t, got[3].HomeScore, "running score of an in-play match is not final")
	assert.Nil(t, got[3].AwayScore)

	assert.Equal(t, match.IntPtr(3), got[4].HomeScore)
	assert.Equal(t, match.IntPtr(0), got[4].AwayScore)
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, nil).Fetch(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"restricted"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Fetch(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CircuitBreakerOpensOnRepeatedFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, func(cfg *ClientConfig) {
		cfg.MaxRetries = 0
		cfg.CircuitBreaker = resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: time.Hour}
	})

	for i := 0; i < 2; i++ {
		_, err := client.Fetch(context.Background(), time.Now(), time.Now())
		require.Error(t, err)
	}
	_, err := client.Fetch(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, usecase.ErrDependencyUnavailable))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_FetchPerCompetition(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("competitions")
		mu.Lock()
		seen[code] = true
		mu.Unlock()
		_, _ = w.Write([]byte(`{"matches":[{"utcDate":"2024-03-02T15:00:00Z","status":"FINISHED","homeTeam":{"name":"` + code + `-H"},"awayTeam":{"name":"` + code + `-A"},"score":{"fullTime":{"home":1,"away":1}},"competition":{"name":"` + code + `"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, func(cfg *ClientConfig) {
		cfg.Competitions = []string{"PL", " ", "PD", "SA"}
	})
	got, err := client.Fetch(context.Background(), time.Now(), time.Now())
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "PL", got[0].League)
	assert.Equal(t, "PD", got[1].League)
	assert.Equal(t, "SA", got[2].League)
	assert.Equal(t, map[string]bool{"PL": true, "PD": true, "SA": true}, seen)
}

func TestClient_FetchHonoursDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(t, srv, nil).Fetch(ctx, time.Now(), time.Now())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSanitizeSensitiveText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dial https://x?t=REDACTED", sanitizeSensitiveText("dial https://x?t=abc", "abc"))
	assert.Equal(t, "unchanged", sanitizeSensitiveText("unchanged", ""))
}
