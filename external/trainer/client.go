package trainer

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"github.com/riskibarqy/match-feature-store/internal/platform/resilience"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errTrainerTransient = crerr.New("trainer transient failure")

type ClientConfig struct {
	URL            string
	Token          string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client hands the training set to a remote training service and reports the
// model it produced.
type Client struct {
	http    *fasthttp.Client
	url     string
	token   string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

var _ usecase.Trainer = (*Client)(nil)

func NewClient(cfg ClientConfig, logger *logging.Logger) (*Client, error) {
	endpoint, err := validateHTTPURL(cfg.URL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid TRAINER_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Client{
		http: &fasthttp.Client{
			Name:                "match-feature-store",
			MaxResponseBodySize: 1 << 20,
		},
		url:     endpoint,
		token:   strings.TrimSpace(cfg.Token),
		timeout: timeout,
		breaker: resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker),
		logger:  logger.Named("trainer"),
	}, nil
}

type trainRequest struct {
	FeatureNames []string           `json:"feature_names"`
	HeldOut      float64            `json:"held_out"`
	Rows         []trainRow         `json:"rows"`
	TeamStats    teamstats.Snapshot `json:"team_stats"`
}

type trainRow struct {
	MatchID  int64     `json:"match_id"`
	Date     string    `json:"date"`
	Features []float64 `json:"features"`
	Target   int       `json:"target"`
}

type trainResponse struct {
	Version     string    `json:"version"`
	TrainedAt   time.Time `json:"trained_at"`
	TrainRows   int       `json:"train_rows"`
	HeldOutRows int       `json:"held_out_rows"`
	Accuracy    float64   `json:"accuracy"`
	Artifact    string    `json:"artifact"`
}

func (c *Client) Train(ctx context.Context, set features.Set, snapshot teamstats.Snapshot, heldOut float64) (usecase.ModelInfo, error) {
	payload := trainRequest{
		FeatureNames: features.Names,
		HeldOut:      heldOut,
		Rows:         make([]trainRow, 0, set.Len()),
		TeamStats:    snapshot,
	}
	for i, row := range set.Rows {
		payload.Rows = append(payload.Rows, trainRow{
			MatchID:  row.MatchID,
			Date:     row.Date.Format(match.DateLayout),
			Features: set.X[i],
			Target:   set.Y[i],
		})
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(payload); err != nil {
		return usecase.ModelInfo{}, crerr.Wrap(err, "encode training payload")
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("trainer.url", c.url),
			attribute.Int("trainer.rows", set.Len()),
			attribute.Int("trainer.request_bytes", buf.Len()),
		)
	}

	var out trainResponse
	err := c.breaker.Execute(func() error {
		return c.post(ctx, buf.B, &out)
	}, isTrainerCircuitFailure)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "trainer circuit breaker rejected request", "state", c.breaker.State())
		return usecase.ModelInfo{}, fmt.Errorf("%w: trainer is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	if err != nil {
		return usecase.ModelInfo{}, err
	}

	c.logger.InfoContext(ctx, "remote model trained", "version", out.Version, "accuracy", out.Accuracy)
	return usecase.ModelInfo{
		Version:      out.Version,
		TrainedAt:    out.TrainedAt,
		TrainRows:    out.TrainRows,
		HeldOutRows:  out.HeldOutRows,
		Accuracy:     out.Accuracy,
		ArtifactPath: out.Artifact,
	}, nil
}

func (c *Client) post(ctx context.Context, body []byte, target *trainResponse) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.SetBodyRaw(body)

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%w: post training request: %v", errTrainerTransient, err)
	}

	status := resp.StatusCode()
	if status/100 != 2 {
		text := truncateForLog(string(resp.Body()), 512)
		if isRetryableStatus(status) {
			return fmt.Errorf("%w: trainer status=%d body=%s", errTrainerTransient, status, text)
		}
		return fmt.Errorf("trainer status=%d body=%s", status, text)
	}

	if err := sonic.Unmarshal(resp.Body(), target); err != nil {
		return crerr.Wrap(err, "decode trainer response")
	}
	if strings.TrimSpace(target.Version) == "" {
		return crerr.New("trainer response has no model version")
	}
	return nil
}

func validateHTTPURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return candidate, nil
}

func truncateForLog(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}

func isTrainerCircuitFailure(err error) bool {
	return stderrors.Is(err, errTrainerTransient)
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == fasthttp.StatusRequestTimeout ||
		statusCode == fasthttp.StatusTooManyRequests ||
		statusCode >= fasthttp.StatusInternalServerError
}
