package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/domain/match"
)

// MatchRepository is an in-process canonical store. Transactions are
// exclusive: Begin blocks until the previous transaction finishes.
type MatchRepository struct {
	writeMu sync.Mutex

	mu      sync.RWMutex
	records []match.Record
	nextID  int64
	now     func() time.Time
}

func NewMatchRepository(seed ...match.Record) *MatchRepository {
	r := &MatchRepository{nextID: 1, now: time.Now}
	for _, rec := range seed {
		rec = cloneRecord(rec)
		if rec.ID == 0 {
			rec.ID = r.nextID
		}
		if rec.ID >= r.nextID {
			r.nextID = rec.ID + 1
		}
		r.records = append(r.records, rec)
	}
	return r
}

func (r *MatchRepository) ListOrderedByDate(_ context.Context) ([]match.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MatchRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

func (r *MatchRepository) Begin(ctx context.Context) (match.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.writeMu.Lock()

	r.mu.RLock()
	tx := &matchTx{
		repo:    r,
		records: make([]match.Record, 0, len(r.records)),
		byKey:   make(map[match.Key]int, len(r.records)),
		nextID:  r.nextID,
	}
	for _, rec := range r.records {
		tx.byKey[rec.Key()] = len(tx.records)
		tx.records = append(tx.records, cloneRecord(rec))
	}
	r.mu.RUnlock()
	return tx, nil
}

type matchTx struct {
	repo    *MatchRepository
	records []match.Record
	byKey   map[match.Key]int
	nextID  int64
	done    bool
}

func (t *matchTx) FindByKey(_ context.Context, key match.Key) (match.Record, bool, error) {
	if t.done {
		return match.Record{}, false, errTxDone
	}
	idx, ok := t.byKey[key]
	if !ok {
		return match.Record{}, false, nil
	}
	return cloneRecord(t.records[idx]), true, nil
}

func (t *matchTx) Insert(_ context.Context, rec match.Record) (match.Record, error) {
	if t.done {
		return match.Record{}, errTxDone
	}
	key := rec.Key()
	if _, exists := t.byKey[key]; exists {
		return match.Record{}, fmt.Errorf("insert match %s: duplicate key", key)
	}
	rec = cloneRecord(rec)
	rec.ID = t.nextID
	rec.CreatedAt = t.repo.now().UTC()
	t.nextID++
	t.byKey[key] = len(t.records)
	t.records = append(t.records, rec)
	return cloneRecord(rec), nil
}

func (t *matchTx) UpdateScores(_ context.Context, id int64, home, away int) error {
	if t.done {
		return errTxDone
	}
	for i := range t.records {
		if t.records[i].ID == id {
			t.records[i].HomeScore = match.IntPtr(home)
			t.records[i].AwayScore = match.IntPtr(away)
			return nil
		}
	}
	return fmt.Errorf("update match %d scores: not found", id)
}

func (t *matchTx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true

	t.repo.mu.Lock()
	t.repo.records = t.records
	t.repo.nextID = t.nextID
	t.repo.mu.Unlock()

	t.repo.writeMu.Unlock()
	return nil
}

func (t *matchTx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.repo.writeMu.Unlock()
	return nil
}

var errTxDone = errors.New("memory: transaction already finished")

func cloneRecord(rec match.Record) match.Record {
	if rec.HomeScore != nil {
		rec.HomeScore = match.IntPtr(*rec.HomeScore)
	}
	if rec.AwayScore != nil {
		rec.AwayScore = match.IntPtr(*rec.AwayScore)
	}
	return rec
}
