package features

import (
	"sort"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
)

const DefaultWindow = 5

// Outcome is the supervised target from the home side's perspective.
type Outcome int

const (
	OutcomeHomeWin Outcome = 0
	OutcomeDraw    Outcome = 1
	OutcomeAwayWin Outcome = 2
)

// Names lists the feature columns in Row.Vector order.
var Names = []string{
	"home_avg_scored",
	"home_avg_conceded",
	"home_form",
	"away_avg_scored",
	"away_avg_conceded",
	"away_form",
}

// Row holds the point-in-time features of one match, built only from matches
// processed before it.
type Row struct {
	MatchID         int64     `json:"match_id"`
	Date            time.Time `json:"date"`
	HomeTeam        string    `json:"home_team"`
	AwayTeam        string    `json:"away_team"`
	League          string    `json:"league"`
	HomeAvgScored   float64   `json:"home_avg_scored"`
	HomeAvgConceded float64   `json:"home_avg_conceded"`
	HomeForm        float64   `json:"home_form"`
	AwayAvgScored   float64   `json:"away_avg_scored"`
	AwayAvgConceded float64   `json:"away_avg_conceded"`
	AwayForm        float64   `json:"away_form"`
	Target          Outcome   `json:"target"`
	Labeled         bool      `json:"labeled"`
}

func (r Row) Vector() []float64 {
	return []float64{
		r.HomeAvgScored,
		r.HomeAvgConceded,
		r.HomeForm,
		r.AwayAvgScored,
		r.AwayAvgConceded,
		r.AwayForm,
	}
}

// Fallback imputes features for teams without history. It is derived once per
// Compute call from every final match in the input.
type Fallback struct {
	Scored   float64 `json:"scored"`
	Conceded float64 `json:"conceded"`
	Form     float64 `json:"form"`
}

func DefaultFallback() Fallback {
	return Fallback{Scored: 1.0, Conceded: 1.0, Form: 0.0}
}

// Result is the output of one engine pass.
type Result struct {
	Rows     []Row
	Snapshot map[string]teamstats.Stats
	Fallback Fallback
	Window   int
}

type draft struct {
	row      Row
	coldHome bool
	coldAway bool
}

// Compute makes a single ascending-date pass over records. Same-date records
// keep their input order and none of them sees another's result. Pending
// records get a row (unlabeled) but never update rolling state.
func Compute(records []match.Record, window int) Result {
	if window < 1 {
		window = DefaultWindow
	}

	ordered := make([]match.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	states := make(map[string]*RollingState)
	stateFor := func(team string) *RollingState {
		st, ok := states[team]
		if !ok {
			st = NewRollingState(window)
			states[team] = st
		}
		return st
	}

	var (
		scoredSum, concededSum float64
		goalSamples            int
	)
	drafts := make([]draft, 0, len(ordered))
	for start := 0; start < len(ordered); {
		end := start + 1
		for end < len(ordered) && ordered[end].Date.Equal(ordered[start].Date) {
			end++
		}
		day := ordered[start:end]

		// Every row of a date reads state before any result of that date is
		// pushed.
		for _, rec := range day {
			drafts = append(drafts, readDraft(rec, stateFor(rec.HomeTeam), stateFor(rec.AwayTeam)))
		}
		for i, rec := range day {
			if !rec.IsFinal() {
				continue
			}
			hs, as := *rec.HomeScore, *rec.AwayScore
			stateFor(rec.HomeTeam).Push(hs, as)
			stateFor(rec.AwayTeam).Push(as, hs)

			scoredSum += float64(hs + as)
			concededSum += float64(as + hs)
			goalSamples += 2

			d := &drafts[len(drafts)-len(day)+i]
			d.row.Target = outcomeLabel(hs, as)
			d.row.Labeled = true
		}
		start = end
	}

	fallback := DefaultFallback()
	if goalSamples > 0 {
		fallback.Scored = scoredSum / float64(goalSamples)
		fallback.Conceded = concededSum / float64(goalSamples)
	}

	rows := make([]Row, 0, len(drafts))
	for _, d := range drafts {
		if d.coldHome {
			d.row.HomeAvgScored = fallback.Scored
			d.row.HomeAvgConceded = fallback.Conceded
			d.row.HomeForm = fallback.Form
		}
		if d.coldAway {
			d.row.AwayAvgScored = fallback.Scored
			d.row.AwayAvgConceded = fallback.Conceded
			d.row.AwayForm = fallback.Form
		}
		rows = append(rows, d.row)
	}

	snapshot := make(map[string]teamstats.Stats, len(states))
	for team, st := range states {
		snapshot[team] = st.Stats(fallback)
	}

	return Result{
		Rows:     rows,
		Snapshot: snapshot,
		Fallback: fallback,
		Window:   window,
	}
}

func readDraft(rec match.Record, home, away *RollingState) draft {
	d := draft{
		row: Row{
			MatchID:  rec.ID,
			Date:     rec.Date,
			HomeTeam: rec.HomeTeam,
			AwayTeam: rec.AwayTeam,
			League:   rec.League,
		},
		coldHome: home.Len() == 0,
		coldAway: away.Len() == 0,
	}
	d.row.HomeAvgScored, _ = home.scored.mean()
	d.row.HomeAvgConceded, _ = home.conceded.mean()
	d.row.HomeForm = home.outcomes.total()
	d.row.AwayAvgScored, _ = away.scored.mean()
	d.row.AwayAvgConceded, _ = away.conceded.mean()
	d.row.AwayForm = away.outcomes.total()
	return d
}

func outcomeLabel(homeScore, awayScore int) Outcome {
	switch {
	case homeScore > awayScore:
		return OutcomeHomeWin
	case homeScore == awayScore:
		return OutcomeDraw
	default:
		return OutcomeAwayWin
	}
}
