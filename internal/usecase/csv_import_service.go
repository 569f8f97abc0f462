package usecase

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
)

// CSVRow is one raw line of a bulk match file.
type CSVRow struct {
	Line      int
	Date      string
	HomeTeam  string
	AwayTeam  string
	HomeScore string
	AwayScore string
	League    string
}

type CSVImportService struct {
	merger     *MergeService
	maxWorkers int
	logger     *logging.Logger
}

func NewCSVImportService(merger *MergeService, maxWorkers int, logger *logging.Logger) *CSVImportService {
	if logger == nil {
		logger = logging.Default()
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &CSVImportService{merger: merger, maxWorkers: maxWorkers, logger: logger}
}

type normalizedRow struct {
	record match.Record
	err    error
}

// Import normalizes rows on a worker pool and merges the valid ones as one
// batch. Row order is preserved so earlier lines win on duplicate keys.
func (s *CSVImportService) Import(ctx context.Context, rows []CSVRow) (MergeResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CSVImportService.Import")
	defer span.End()

	results := make([]normalizedRow, len(rows))
	if len(rows) > 0 {
		workers := s.maxWorkers
		if workers > len(rows) {
			workers = len(rows)
		}
		pool, err := ants.NewPool(workers)
		if err != nil {
			return MergeResult{}, fmt.Errorf("create worker pool: %w", err)
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i := range rows {
			idx := i
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				row := rows[idx]
				rec, err := match.Normalize(match.Incoming{
					Date:      row.Date,
					HomeTeam:  row.HomeTeam,
					AwayTeam:  row.AwayTeam,
					HomeScore: match.ParseScore(row.HomeScore),
					AwayScore: match.ParseScore(row.AwayScore),
					League:    row.League,
				})
				results[idx] = normalizedRow{record: rec, err: err}
			}); err != nil {
				wg.Done()
				wg.Wait()
				return MergeResult{}, fmt.Errorf("submit row to worker pool: %w", err)
			}
		}
		wg.Wait()
	}

	records := make([]match.Record, 0, len(rows))
	rejected := 0
	for i, res := range results {
		if res.err != nil {
			rejected++
			s.logger.WarnContext(ctx, "skip invalid csv row", "line", rows[i].Line, "error", res.err)
			continue
		}
		records = append(records, res.record)
	}

	merged, err := s.merger.MergeRecords(ctx, records)
	merged = merged.add(MergeResult{Received: rejected, Rejected: rejected})
	if err != nil {
		return merged, err
	}

	s.logger.InfoContext(ctx, "csv import completed",
		"rows", len(rows),
		"inserted", merged.Inserted,
		"backfilled", merged.Backfilled,
		"unchanged", merged.Unchanged,
		"rejected", merged.Rejected,
	)
	return merged, nil
}
