package sqlstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/match"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// parseStoredDate accepts both "2006-01-02" (sqlite TEXT) and the RFC3339
// rendering that pq gives a DATE column scanned into a string.
func parseStoredDate(raw string) (time.Time, error) {
	return match.ParseDate(raw)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
}

// parseStoredTimestamp is lenient: an unreadable audit column yields the zero
// time rather than failing the read.
func parseStoredTimestamp(raw sql.NullString) time.Time {
	if !raw.Valid {
		return time.Time{}
	}
	value := strings.TrimSpace(raw.String)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullIntToPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	out := int(v.Int64)
	return &out
}

func ptrToNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
