package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

const (
	defaultFeatureLimit = 50
	maxFeatureLimit     = 1000
)

type Handler struct {
	featureService *usecase.FeatureService
	mergeService   *usecase.MergeService
	orchestrator   *usecase.UpdateOrchestratorService
	artifacts      []WatchedArtifact
	notifyInterval time.Duration
	logger         *logging.Logger
	validator      *validator.Validate
}

type HandlerConfig struct {
	FeatureService *usecase.FeatureService
	MergeService   *usecase.MergeService
	Orchestrator   *usecase.UpdateOrchestratorService
	Artifacts      []WatchedArtifact
	NotifyInterval time.Duration
	Logger         *logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	interval := cfg.NotifyInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Handler{
		featureService: cfg.FeatureService,
		mergeService:   cfg.MergeService,
		orchestrator:   cfg.Orchestrator,
		artifacts:      cfg.Artifacts,
		notifyInterval: interval,
		logger:         logger,
		validator:      validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListTeamStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTeamStats")
	defer span.End()

	snapshot, err := h.featureService.TeamStats(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list team stats failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, snapshotToDTO(snapshot))
}

func (h *Handler) GetTeamStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTeamStats")
	defer span.End()

	team := strings.TrimSpace(r.PathValue("team"))
	stats, err := h.featureService.TeamStatsByName(ctx, team)
	if err != nil {
		h.logger.WarnContext(ctx, "get team stats failed", "team", team, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, teamStatsToDTO(team, stats))
}

func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFeatures")
	defer span.End()

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	rows, err := h.featureService.Latest(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list features failed", "limit", limit, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]featureRowDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, featureRowToDTO(row))
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetUpdaterStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetUpdaterStatus")
	defer span.End()

	if h.orchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: updater is not running in this process", usecase.ErrDependencyUnavailable))
		return
	}
	writeSuccess(ctx, w, http.StatusOK, h.orchestrator.Status())
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultFeatureLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", usecase.ErrInvalidInput)
	}
	if limit > maxFeatureLimit {
		limit = maxFeatureLimit
	}
	return limit, nil
}
