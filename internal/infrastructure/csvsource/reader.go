package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/riskibarqy/match-feature-store/internal/usecase"
)

var requiredColumns = []string{"date", "home_team", "away_team", "home_score", "away_score"}

// ReadFile loads a match CSV whose first line is a header. Columns are matched
// by name, case-insensitively; "league" is optional and extra columns are
// ignored.
func ReadFile(ctx context.Context, path string) ([]usecase.CSVRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()
	return Read(ctx, f)
}

func Read(ctx context.Context, r io.Reader) ([]usecase.CSVRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: csv column %q is missing", usecase.ErrInvalidInput, col)
		}
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []usecase.CSVRow
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rows = append(rows, usecase.CSVRow{
			Line:      line,
			Date:      field(record, "date"),
			HomeTeam:  field(record, "home_team"),
			AwayTeam:  field(record, "away_team"),
			HomeScore: field(record, "home_score"),
			AwayScore: field(record, "away_score"),
			League:    field(record, "league"),
		})
	}
	return rows, nil
}
