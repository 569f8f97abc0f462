package teamstats

import (
	"sort"
	"time"
)

// Stats is a team's most current rolling-window knowledge.
type Stats struct {
	AvgScored   float64 `json:"avg_scored"`
	AvgConceded float64 `json:"avg_conceded"`
	Form        float64 `json:"form"`
}

// Snapshot is the serving artifact, overwritten wholesale on every recompute.
type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Window      int              `json:"window"`
	Teams       map[string]Stats `json:"teams"`
}

func (s Snapshot) Lookup(team string) (Stats, bool) {
	stats, ok := s.Teams[team]
	return stats, ok
}

// TeamNames returns the teams in lexical order.
func (s Snapshot) TeamNames() []string {
	names := make([]string, 0, len(s.Teams))
	for name := range s.Teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
