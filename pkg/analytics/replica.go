package analytics

import (
	"context"
	"database/sql"
)

// ReaderFunc resolves the handle serving a read at query time, typically a
// ConnectionManager's Replica method. Replicas can be closed and rotated out at any
// moment, so the handle must not be cached.
type ReaderFunc func() *sql.DB

// readThrough runs fn against the handle reader resolves. When that handle is not primary
// and fails, fn is retried once on primary while ctx is still live.
func readThrough(ctx context.Context, primary *sql.DB, reader ReaderFunc, fn func(db *sql.DB) error) error {
	db := primary
	if reader != nil {
		if r := reader(); r != nil {
			db = r
		}
	}

	err := fn(db)
	if err == nil || db == primary || ctx.Err() != nil {
		return err
	}
	return fn(primary)
}
