package httpapi

import (
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/features"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
)

type teamStatsDTO struct {
	Team        string  `json:"team"`
	AvgScored   float64 `json:"avg_scored"`
	AvgConceded float64 `json:"avg_conceded"`
	Form        float64 `json:"form"`
}

type snapshotDTO struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Window      int            `json:"window"`
	Teams       []teamStatsDTO `json:"teams"`
}

type featureRowDTO struct {
	MatchID         int64   `json:"match_id"`
	Date            string  `json:"date"`
	HomeTeam        string  `json:"home_team"`
	AwayTeam        string  `json:"away_team"`
	League          string  `json:"league"`
	HomeAvgScored   float64 `json:"home_avg_scored"`
	HomeAvgConceded float64 `json:"home_avg_conceded"`
	HomeForm        float64 `json:"home_form"`
	AwayAvgScored   float64 `json:"away_avg_scored"`
	AwayAvgConceded float64 `json:"away_avg_conceded"`
	AwayForm        float64 `json:"away_form"`
	Target          *int    `json:"target"`
}

type ingestMatchesRequest struct {
	Matches []ingestMatchItem `json:"matches" validate:"required,min=1,max=5000,dive"`
}

type ingestMatchItem struct {
	Date      string `json:"date" validate:"required"`
	HomeTeam  string `json:"home_team" validate:"required,max=200"`
	AwayTeam  string `json:"away_team" validate:"required,max=200,nefield=HomeTeam"`
	HomeScore *int   `json:"home_score" validate:"omitempty,min=0"`
	AwayScore *int   `json:"away_score" validate:"omitempty,min=0"`
	League    string `json:"league" validate:"omitempty,max=200"`
}

func (i ingestMatchItem) toIncoming() match.Incoming {
	return match.Incoming{
		Date:      i.Date,
		HomeTeam:  i.HomeTeam,
		AwayTeam:  i.AwayTeam,
		HomeScore: i.HomeScore,
		AwayScore: i.AwayScore,
		League:    i.League,
	}
}

func snapshotToDTO(s teamstats.Snapshot) snapshotDTO {
	out := snapshotDTO{
		GeneratedAt: s.GeneratedAt,
		Window:      s.Window,
		Teams:       make([]teamStatsDTO, 0, len(s.Teams)),
	}
	for _, name := range s.TeamNames() {
		out.Teams = append(out.Teams, teamStatsToDTO(name, s.Teams[name]))
	}
	return out
}

func teamStatsToDTO(team string, s teamstats.Stats) teamStatsDTO {
	return teamStatsDTO{
		Team:        team,
		AvgScored:   s.AvgScored,
		AvgConceded: s.AvgConceded,
		Form:        s.Form,
	}
}

// Pending matches have no target yet.
func featureRowToDTO(row features.Row) featureRowDTO {
	out := featureRowDTO{
		MatchID:         row.MatchID,
		Date:            row.Date.Format(match.DateLayout),
		HomeTeam:        row.HomeTeam,
		AwayTeam:        row.AwayTeam,
		League:          row.League,
		HomeAvgScored:   row.HomeAvgScored,
		HomeAvgConceded: row.HomeAvgConceded,
		HomeForm:        row.HomeForm,
		AwayAvgScored:   row.AwayAvgScored,
		AwayAvgConceded: row.AwayAvgConceded,
		AwayForm:        row.AwayForm,
	}
	if row.Labeled {
		target := int(row.Target)
		out.Target = &target
	}
	return out
}
