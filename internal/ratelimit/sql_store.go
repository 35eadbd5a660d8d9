package ratelimit

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLCounterStore keeps window counters in Postgres so every request-handling
// process observes the same counts. The row lock taken by SELECT ... FOR
// UPDATE serializes concurrent hits for the same (subject, action).
type SQLCounterStore struct {
	db *sqlx.DB
}

// NewSQLCounterStore constructs a SQLCounterStore.
func NewSQLCounterStore(db *sqlx.DB) *SQLCounterStore {
	return &SQLCounterStore{db: db}
}

// Hit implements CounterStore.
func (s *SQLCounterStore) Hit(ctx context.Context, subject, action string, limit int, window time.Duration) (allowed bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Seed the row so the FOR UPDATE below always has something to lock.
	if _, err = tx.ExecContext(ctx, `INSERT INTO rate_limit_counters (subject, action, window_start, count)
        VALUES ($1, $2, NOW(), 0)
        ON CONFLICT (subject, action) DO NOTHING`, subject, action); err != nil {
		return false, err
	}

	// window_start is written with the database clock, so expiry is computed
	// there too; application clocks never enter the comparison.
	var row struct {
		Count   int  `db:"count"`
		Expired bool `db:"expired"`
	}
	if err = tx.GetContext(ctx, &row, `SELECT count,
        EXTRACT(EPOCH FROM (NOW() - window_start)) >= $3 AS expired
        FROM rate_limit_counters
        WHERE subject=$1 AND action=$2 FOR UPDATE`, subject, action, window.Seconds()); err != nil {
		return false, err
	}

	switch {
	case row.Expired:
		// Window expired: start a fresh one with this request counted.
		_, err = tx.ExecContext(ctx, `UPDATE rate_limit_counters SET window_start=NOW(), count=1
            WHERE subject=$1 AND action=$2`, subject, action)
		allowed = true
	case row.Count < limit:
		_, err = tx.ExecContext(ctx, `UPDATE rate_limit_counters SET count=count+1
            WHERE subject=$1 AND action=$2`, subject, action)
		allowed = true
	default:
		// Over the cap: reject without touching the counter.
		allowed = false
	}
	if err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return allowed, nil
}
