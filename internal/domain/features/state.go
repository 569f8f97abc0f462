package features

import "github.com/riskibarqy/match-feature-store/internal/domain/teamstats"

// RollingState keeps the last window goals scored, goals conceded and
// outcome codes (+1 win, 0 draw, -1 loss) of one team. The three sequences
// always have equal length.
type RollingState struct {
	scored   *ring
	conceded *ring
	outcomes *ring
}

func NewRollingState(window int) *RollingState {
	if window < 1 {
		window = DefaultWindow
	}
	return &RollingState{
		scored:   newRing(window),
		conceded: newRing(window),
		outcomes: newRing(window),
	}
}

// Push records one final result from this team's perspective.
func (s *RollingState) Push(scored, conceded int) {
	s.scored.push(float64(scored))
	s.conceded.push(float64(conceded))
	s.outcomes.push(outcomeCode(scored, conceded))
}

func (s *RollingState) Len() int {
	return s.scored.len()
}

// History returns copies of the retained sequences, oldest first.
func (s *RollingState) History() (scored, conceded, outcomes []float64) {
	return s.scored.items(), s.conceded.items(), s.outcomes.items()
}

// Stats summarizes the current window. A team with no history gets fb.
func (s *RollingState) Stats(fb Fallback) teamstats.Stats {
	avgScored, ok := s.scored.mean()
	if !ok {
		return teamstats.Stats{AvgScored: fb.Scored, AvgConceded: fb.Conceded, Form: fb.Form}
	}
	avgConceded, _ := s.conceded.mean()
	return teamstats.Stats{
		AvgScored:   avgScored,
		AvgConceded: avgConceded,
		Form:        s.outcomes.total(),
	}
}

func outcomeCode(scored, conceded int) float64 {
	switch {
	case scored > conceded:
		return 1
	case scored < conceded:
		return -1
	default:
		return 0
	}
}
