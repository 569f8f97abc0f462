package match

import (
	"strings"
	"time"
)

const DefaultLeague = "Unknown"

// Record is one fixture result in the canonical store.
type Record struct {
	ID        int64
	Date      time.Time
	HomeTeam  string
	AwayTeam  string
	HomeScore *int
	AwayScore *int
	League    string
	CreatedAt time.Time
}

// Key is the identity of a record: at most one record per key is stored.
type Key struct {
	Date     time.Time
	HomeTeam string
	AwayTeam string
}

func (k Key) String() string {
	return k.Date.Format(DateLayout) + "|" + k.HomeTeam + "|" + k.AwayTeam
}

func (r Record) Key() Key {
	return Key{Date: r.Date, HomeTeam: r.HomeTeam, AwayTeam: r.AwayTeam}
}

// IsFinal reports whether both scores are known.
func (r Record) IsFinal() bool {
	return r.HomeScore != nil && r.AwayScore != nil
}

func (r Record) IsPending() bool {
	return !r.IsFinal()
}

// Incoming is an unnormalized record as produced by a fetcher or a CSV row.
type Incoming struct {
	Date      string
	HomeTeam  string
	AwayTeam  string
	HomeScore *int
	AwayScore *int
	League    string
}

func normalizeLeague(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultLeague
	}
	return value
}

func IntPtr(v int) *int {
	return &v
}
