package sqlstore

import "database/sql"

const matchesTable = "matches"

type matchTableModel struct {
	ID        int64          `db:"id,auto"`
	MatchDate string         `db:"match_date"`
	HomeTeam  string         `db:"home_team"`
	AwayTeam  string         `db:"away_team"`
	HomeScore sql.NullInt64  `db:"home_score"`
	AwayScore sql.NullInt64  `db:"away_score"`
	League    string         `db:"league"`
	CreatedAt sql.NullString `db:"created_at,auto"`
}

const snapshotsTable = "team_stat_snapshots"

type teamStatSnapshotTableModel struct {
	Team        string  `db:"team"`
	AvgScored   float64 `db:"avg_scored"`
	AvgConceded float64 `db:"avg_conceded"`
	Form        float64 `db:"form"`
	WindowSize  int     `db:"window_size"`
	GeneratedAt string  `db:"generated_at"`
}

const metaTable = "meta"

type metaTableModel struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}
