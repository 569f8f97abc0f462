package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("id", "home_team").
		From("matches").
		Where(Eq("match_date", "2023-01-01"), IsNull("home_score")).
		OrderBy("match_date", "id").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT id, home_team FROM matches WHERE match_date = ? AND home_score IS NULL ORDER BY match_date, id LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "2023-01-01" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestSelectBuilderRequiresTable(t *testing.T) {
	if _, _, err := Select("id").ToSQL(); err == nil {
		t.Fatalf("expected error for missing table")
	}
}

func TestInsertBuilder(t *testing.T) {
	query, args, err := InsertInto("meta").
		Columns("key", "value").
		Values("last_cycle_at", "2023-01-01T00:00:00Z").
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "last_cycle_at" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilderRowWidthMismatch(t *testing.T) {
	_, _, err := InsertInto("meta").Columns("key", "value").Values("only-one").ToSQL()
	if err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("matches").
		Set("home_score", 2).
		Set("away_score", 1).
		SetExpr("updated_at", "CURRENT_TIMESTAMP").
		Where(Eq("id", int64(7)), IsNull("home_score")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE matches SET home_score = ?, away_score = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND home_score IS NULL"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 3 || args[0] != 2 || args[2] != int64(7) {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestDeleteBuilder(t *testing.T) {
	query, args, err := DeleteFrom("team_stat_snapshots").ToSQL()
	if err != nil {
		t.Fatalf("build delete query: %v", err)
	}
	if query != "DELETE FROM team_stat_snapshots" || len(args) != 0 {
		t.Fatalf("unexpected delete: %s %+v", query, args)
	}
}

func TestInsertModel(t *testing.T) {
	type row struct {
		Team   string  `db:"team"`
		Scored float64 `db:"avg_scored"`
		hidden string
		Skip   string `db:"-"`
	}

	query, args, err := InsertModel("team_stat_snapshots", row{Team: "A", Scored: 1.5, hidden: "x"}, "")
	if err != nil {
		t.Fatalf("insert model: %v", err)
	}
	if query != "INSERT INTO team_stat_snapshots (team, avg_scored) VALUES (?, ?)" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 2 || args[0] != "A" || args[1] != 1.5 {
		t.Fatalf("unexpected args: %+v", args)
	}
}
