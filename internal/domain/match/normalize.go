package match

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const DateLayout = "2006-01-02"

// ErrInvalidRecord marks records that are skipped at ingestion.
var ErrInvalidRecord = errors.New("invalid match record")

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"02/01/2006",
}

// ParseDate accepts the date shapes seen in provider payloads, CSV exports and
// driver scans and returns the calendar date at UTC midnight. Timestamps with
// an offset keep the date written in that offset.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, errors.Mark(errors.New("date is empty"), ErrInvalidRecord)
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, errors.Mark(errors.Newf("unparsable date %q", value), ErrInvalidRecord)
}

// TruncateDate keeps the calendar date of t as seen in UTC.
func TruncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseScore coerces free text to a goal count; anything that is not a
// non-negative integer is unknown.
func ParseScore(raw string) *int {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int(f)) && f >= 0 {
		return IntPtr(int(f))
	}
	return nil
}

// Normalize validates an incoming record and converts it to the stored shape.
func Normalize(in Incoming) (Record, error) {
	date, err := ParseDate(in.Date)
	if err != nil {
		return Record{}, err
	}

	home := strings.TrimSpace(in.HomeTeam)
	away := strings.TrimSpace(in.AwayTeam)
	if home == "" || away == "" {
		return Record{}, errors.Mark(errors.Newf("team is required (home=%q away=%q)", home, away), ErrInvalidRecord)
	}
	if home == away {
		return Record{}, errors.Mark(errors.Newf("team %q cannot play itself", home), ErrInvalidRecord)
	}

	homeScore := nonNegative(in.HomeScore)
	awayScore := nonNegative(in.AwayScore)
	if homeScore == nil || awayScore == nil {
		homeScore, awayScore = nil, nil
	}

	return Record{
		Date:      date,
		HomeTeam:  home,
		AwayTeam:  away,
		HomeScore: homeScore,
		AwayScore: awayScore,
		League:    normalizeLeague(in.League),
	}, nil
}

func nonNegative(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	return IntPtr(*v)
}
