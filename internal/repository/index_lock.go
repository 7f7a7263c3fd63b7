package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// indexLockKey identifies the vector index in pg_advisory_lock's key space.
const indexLockKey int64 = 0x7374_7564_7966

// IndexLock serialises vector index writes across studyd processes. It holds
// a session-level advisory lock on a dedicated pooled connection, since the
// write spans a snapshot upload and not a single transaction.
type IndexLock struct {
	pool *pgxpool.Pool
	key  int64
}

func NewIndexLock(pool *pgxpool.Pool) *IndexLock {
	return &IndexLock{pool: pool, key: indexLockKey}
}

// Lock blocks until the lock is held or ctx is done.
func (l *IndexLock) Lock(ctx context.Context) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, l.key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}

	return func() {
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			// A connection that still holds the lock must not go back to the pool.
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}, nil
}
