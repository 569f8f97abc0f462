package match

import "context"

// Repository is the canonical match store.
type Repository interface {
	// ListOrderedByDate returns every record ordered by date, then insertion order.
	ListOrderedByDate(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one merge batch. Reads observe writes made earlier in the same Tx.
type Tx interface {
	FindByKey(ctx context.Context, key Key) (Record, bool, error)
	Insert(ctx context.Context, record Record) (Record, error)
	UpdateScores(ctx context.Context, id int64, homeScore, awayScore int) error
	Commit() error
	Rollback() error
}
