package footballdata

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"github.com/riskibarqy/match-feature-store/internal/platform/resilience"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.football-data.org/v4"

	// Free tier allows 10 requests per minute.
	defaultRatePerMinute = 10
	maxResponseBytes     = 6 << 20
)

var errTransient = stderrors.New("football-data transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Competitions   []string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RatePerMinute  int
	MaxConcurrency int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client reads finished and scheduled fixtures from football-data.org v4.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	competitions   []string
	maxRetries     int
	retryBackoff   time.Duration
	maxConcurrency int
	limiter        *rate.Limiter
	breaker        *resilience.CircuitBreaker
	logger         *logging.Logger
	now            func() time.Time
}

var _ usecase.Fetcher = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}

	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	competitions := make([]string, 0, len(cfg.Competitions))
	for _, code := range cfg.Competitions {
		code = strings.TrimSpace(code)
		if code != "" {
			competitions = append(competitions, code)
		}
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		competitions:   competitions,
		maxRetries:     maxRetries,
		retryBackoff:   backoff,
		maxConcurrency: concurrency,
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		breaker:        resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker),
		logger:         logger.Named("footballdata"),
		now:            time.Now,
	}
}

// Fetch returns every fixture dated within [from, to]. With competitions
// configured, one request per competition is issued concurrently and the
// batches are concatenated in configuration order.
func (c *Client) Fetch(ctx context.Context, from, to time.Time) ([]match.Incoming, error) {
	query := url.Values{}
	query.Set("dateFrom", from.UTC().Format(match.DateLayout))
	query.Set("dateTo", to.UTC().Format(match.DateLayout))

	if len(c.competitions) == 0 {
		return c.fetchMatches(ctx, query)
	}

	type batch struct {
		index int
		items []match.Incoming
	}
	p := pool.NewWithResults[batch]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(c.maxConcurrency)
	for i, code := range c.competitions {
		idx := i
		scoped := url.Values{}
		for key, values := range query {
			scoped[key] = append([]string(nil), values...)
		}
		scoped.Set("competitions", code)
		p.Go(func(ctx context.Context) (batch, error) {
			items, err := c.fetchMatches(ctx, scoped)
			if err != nil {
				return batch{}, fmt.Errorf("competition %s: %w", scoped.Get("competitions"), err)
			}
			return batch{index: idx, items: items}, nil
		})
	}

	batches, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].index < batches[j].index })

	out := make([]match.Incoming, 0)
	for _, b := range batches {
		out = append(out, b.items...)
	}
	return out, nil
}

func (c *Client) fetchMatches(ctx context.Context, query url.Values) ([]match.Incoming, error) {
	var payload matchesEnvelope
	if err := c.doJSON(ctx, "/matches", query, &payload); err != nil {
		return nil, err
	}

	out := make([]match.Incoming, 0, len(payload.Matches))
	for _, item := range payload.Matches {
		out = append(out, c.toIncoming(item))
	}
	return out, nil
}

func (c *Client) toIncoming(item matchItem) match.Incoming {
	date := c.now().UTC().Format(match.DateLayout)
	if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(item.UTCDate)); err == nil {
		date = parsed.Format(match.DateLayout)
	}

	in := match.Incoming{
		Date:     date,
		HomeTeam: teamName(item.HomeTeam),
		AwayTeam: teamName(item.AwayTeam),
		League:   competitionName(item.Competition),
	}
	// fullTime carries the running score while a match is IN_PLAY or PAUSED.
	if isFinalStatus(item.Status) {
		in.HomeScore = item.Score.FullTime.Home
		in.AwayScore = item.Score.FullTime.Away
	}
	return in
}

func isFinalStatus(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case statusFinished, statusAwarded:
		return true
	default:
		return false
	}
}

func teamName(team teamRef) string {
	switch {
	case strings.TrimSpace(team.Name) != "":
		return team.Name
	case strings.TrimSpace(team.ShortName) != "":
		return team.ShortName
	case team.ID != nil:
		return strconv.FormatInt(*team.ID, 10)
	default:
		return ""
	}
}

func competitionName(comp competition) string {
	switch {
	case strings.TrimSpace(comp.Name) != "":
		return comp.Name
	case comp.ID != nil:
		return strconv.FormatInt(*comp.ID, 10)
	default:
		return match.DefaultLeague
	}
}

func (c *Client) doJSON(ctx context.Context, path string, query url.Values, target any) error {
	fullURL := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	var raw []byte
	err := c.breaker.Execute(func() error {
		body, reqErr := c.executeRequest(ctx, fullURL)
		raw = body
		return reqErr
	}, isCircuitFailure)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "football-data circuit breaker rejected request", "state", c.breaker.State())
		return fmt.Errorf("%w: football-data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("X-Auth-Token", c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: send request: %s", errTransient, sanitizeSensitiveText(err.Error(), c.token))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.WarnContext(ctx, "football-data request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isCircuitFailure(err error) bool {
	return stderrors.Is(err, errTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(text, token string) string {
	if token == "" {
		return text
	}
	return strings.ReplaceAll(text, token, "REDACTED")
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
