package usecase

import (
	"context"

	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type MergeResult struct {
	Received   int `json:"received"`
	Inserted   int `json:"inserted"`
	Backfilled int `json:"backfilled"`
	Unchanged  int `json:"unchanged"`
	Rejected   int `json:"rejected"`
}

func (r MergeResult) add(other MergeResult) MergeResult {
	return MergeResult{
		Received:   r.Received + other.Received,
		Inserted:   r.Inserted + other.Inserted,
		Backfilled: r.Backfilled + other.Backfilled,
		Unchanged:  r.Unchanged + other.Unchanged,
		Rejected:   r.Rejected + other.Rejected,
	}
}

// MergeService applies batches to the canonical store. Records are only ever
// inserted or moved from pending to final; stored final scores never change.
type MergeService struct {
	repo   match.Repository
	logger *logging.Logger
}

func NewMergeService(repo match.Repository, logger *logging.Logger) *MergeService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MergeService{repo: repo, logger: logger}
}

// Merge normalizes and applies one batch. Invalid records are counted and
// skipped; a persistence failure rolls the whole batch back.
func (s *MergeService) Merge(ctx context.Context, batch []match.Incoming) (MergeResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MergeService.Merge")
	defer span.End()

	records := make([]match.Record, 0, len(batch))
	rejected := 0
	for i, item := range batch {
		rec, err := match.Normalize(item)
		if err != nil {
			rejected++
			s.logger.WarnContext(ctx, "skip invalid match record",
				"index", i,
				"date", item.Date,
				"home_team", item.HomeTeam,
				"away_team", item.AwayTeam,
				"error", err,
			)
			continue
		}
		records = append(records, rec)
	}

	result, err := s.MergeRecords(ctx, records)
	result = result.add(MergeResult{Received: rejected, Rejected: rejected})
	span.SetAttributes(attribute.Int("merge.rejected", result.Rejected))
	return result, err
}

// MergeRecords applies already normalized records in one transaction.
func (s *MergeService) MergeRecords(ctx context.Context, records []match.Record) (MergeResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MergeService.MergeRecords")
	defer span.End()

	result := MergeResult{Received: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return result, markAs(err, ErrMerge, "begin merge")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	applied := MergeResult{Received: len(records)}
	for _, rec := range records {
		existing, found, err := tx.FindByKey(ctx, rec.Key())
		if err != nil {
			return result, markAs(err, ErrMerge, "lookup match")
		}

		switch {
		case !found:
			if _, err := tx.Insert(ctx, rec); err != nil {
				return result, markAs(err, ErrMerge, "insert match")
			}
			applied.Inserted++
		case existing.IsPending() && rec.IsFinal():
			if err := tx.UpdateScores(ctx, existing.ID, *rec.HomeScore, *rec.AwayScore); err != nil {
				return result, markAs(err, ErrMerge, "backfill match scores")
			}
			applied.Backfilled++
		default:
			applied.Unchanged++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, markAs(err, ErrMerge, "commit merge")
	}
	committed = true

	span.SetAttributes(
		attribute.Int("merge.inserted", applied.Inserted),
		attribute.Int("merge.backfilled", applied.Backfilled),
	)
	s.logger.InfoContext(ctx, "merge batch applied",
		"received", applied.Received,
		"inserted", applied.Inserted,
		"backfilled", applied.Backfilled,
		"unchanged", applied.Unchanged,
	)
	return applied, nil
}
