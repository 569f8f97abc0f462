package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	qb "github.com/riskibarqy/match-feature-store/internal/platform/querybuilder"
)

// MatchRepository is the canonical match store on postgres or sqlite.
type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) ListOrderedByDate(ctx context.Context) ([]match.Record, error) {
	query, args, err := qb.Select(qb.Columns(matchTableModel{})...).
		From(matchesTable).
		OrderBy("match_date", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}

	out := make([]match.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MatchRepository) Count(ctx context.Context) (int, error) {
	query, args, err := qb.Select("COUNT(*)").From(matchesTable).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count matches query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return total, nil
}

func (r *MatchRepository) Begin(ctx context.Context) (match.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin match tx: %w", err)
	}
	return &matchTx{tx: tx}, nil
}

type matchTx struct {
	tx *sqlx.Tx
}

func (t *matchTx) FindByKey(ctx context.Context, key match.Key) (match.Record, bool, error) {
	query, args, err := qb.Select(qb.Columns(matchTableModel{})...).
		From(matchesTable).
		Where(
			qb.Eq("match_date", key.Date.Format(match.DateLayout)),
			qb.Eq("home_team", key.HomeTeam),
			qb.Eq("away_team", key.AwayTeam),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return match.Record{}, false, fmt.Errorf("build find match query: %w", err)
	}

	var row matchTableModel
	if err := t.tx.GetContext(ctx, &row, t.tx.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return match.Record{}, false, nil
		}
		return match.Record{}, false, fmt.Errorf("find match %s: %w", key, err)
	}

	rec, err := row.toDomain()
	if err != nil {
		return match.Record{}, false, err
	}
	return rec, true, nil
}

func (t *matchTx) Insert(ctx context.Context, rec match.Record) (match.Record, error) {
	model := matchTableModel{
		MatchDate: rec.Date.Format(match.DateLayout),
		HomeTeam:  rec.HomeTeam,
		AwayTeam:  rec.AwayTeam,
		HomeScore: ptrToNullInt(rec.HomeScore),
		AwayScore: ptrToNullInt(rec.AwayScore),
		League:    rec.League,
	}
	query, args, err := qb.InsertModel(matchesTable, model, "RETURNING id")
	if err != nil {
		return match.Record{}, fmt.Errorf("build insert match query: %w", err)
	}

	if err := t.tx.QueryRowxContext(ctx, t.tx.Rebind(query), args...).Scan(&rec.ID); err != nil {
		return match.Record{}, fmt.Errorf("insert match %s: %w", rec.Key(), err)
	}
	return rec, nil
}

func (t *matchTx) UpdateScores(ctx context.Context, id int64, home, away int) error {
	query, args, err := qb.Update(matchesTable).
		Set("home_score", home).
		Set("away_score", away).
		SetExpr("updated_at", "CURRENT_TIMESTAMP").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update match scores query: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update match %d scores: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match %d scores rows affected: %w", id, err)
	}
	if affected != 1 {
		return fmt.Errorf("update match %d scores: %d rows affected", id, affected)
	}
	return nil
}

func (t *matchTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit match tx: %w", err)
	}
	return nil
}

func (t *matchTx) Rollback() error {
	return t.tx.Rollback()
}

func (m matchTableModel) toDomain() (match.Record, error) {
	date, err := parseStoredDate(m.MatchDate)
	if err != nil {
		return match.Record{}, fmt.Errorf("match %d: %w", m.ID, err)
	}
	return match.Record{
		ID:        m.ID,
		Date:      date,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		HomeScore: nullIntToPtr(m.HomeScore),
		AwayScore: nullIntToPtr(m.AwayScore),
		League:    m.League,
		CreatedAt: parseStoredTimestamp(m.CreatedAt),
	}, nil
}
