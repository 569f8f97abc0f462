package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	qb "github.com/riskibarqy/match-feature-store/internal/platform/querybuilder"
)

// MetaRepository is a small key/value table for operator bookkeeping.
type MetaRepository struct {
	db *sqlx.DB
}

func NewMetaRepository(db *sqlx.DB) *MetaRepository {
	return &MetaRepository{db: db}
}

func (r *MetaRepository) Get(ctx context.Context, key string) (string, bool, error) {
	return getMeta(ctx, r.db, key)
}

func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	return setMeta(ctx, r.db, key, value)
}

func getMeta(ctx context.Context, q sqlx.ExtContext, key string) (string, bool, error) {
	query, args, err := qb.Select("value").From(metaTable).Where(qb.Eq("key", key)).ToSQL()
	if err != nil {
		return "", false, fmt.Errorf("build select meta query: %w", err)
	}

	var value string
	if err := sqlx.GetContext(ctx, q, &value, q.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select meta key=%s: %w", key, err)
	}
	return value, true, nil
}

func setMeta(ctx context.Context, q sqlx.ExtContext, key, value string) error {
	query, args, err := qb.InsertModel(metaTable, metaTableModel{Key: key, Value: value},
		"ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP")
	if err != nil {
		return fmt.Errorf("build upsert meta query: %w", err)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("upsert meta key=%s: %w", key, err)
	}
	return nil
}
