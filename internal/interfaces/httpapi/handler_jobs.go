package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

const maxIngestBodyBytes = 8 << 20

func (h *Handler) RunUpdateCycleJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunUpdateCycleJob")
	defer span.End()

	if h.orchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: update orchestrator is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	result, err := h.orchestrator.RunCycle(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "run update cycle job failed", "run_id", result.RunID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) IngestMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.IngestMatches")
	defer span.End()

	if h.mergeService == nil {
		writeError(ctx, w, fmt.Errorf("%w: merge importer is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	decoder := sonic.ConfigDefault.NewDecoder(io.LimitReader(r.Body, maxIngestBodyBytes))
	decoder.DisallowUnknownFields()

	var req ingestMatchesRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	batch := make([]match.Incoming, 0, len(req.Matches))
	for _, item := range req.Matches {
		batch = append(batch, item.toIncoming())
	}

	result, err := h.mergeService.Merge(ctx, batch)
	if err != nil {
		h.logger.ErrorContext(ctx, "ingest matches failed", "count", len(batch), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}
