// Package pg implements the storage interfaces on PostgreSQL via pgx. Every
// single-use consumption and revocation is a conditional UPDATE, so the
// exactly-once guarantees hold across replicas of the service.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrUnavailable marks a storage failure that persisted through a retry. The
// HTTP layer answers 503 for it.
var ErrUnavailable = errors.New("storage unavailable")

// DB wraps a pgx pool and retries transient connection failures once before
// surfacing them as ErrUnavailable. Statements that reached the server are
// never retried, so conditional updates stay exactly-once.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB opens a connection pool to PostgreSQL and verifies it with a ping.
func NewDB(ctx context.Context, url string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "[NewDB] ParseConfig")
	}

	poolConfig.MaxConns = 20
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "[NewDB] NewWithConfig")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "[NewDB] Ping")
	}

	return &DB{pool: pool}, nil
}

func (d *DB) Close() {
	d.pool.Close()
}

func (d *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil && transientErr(err) {
		tag, err = d.pool.Exec(ctx, sql, args...)
	}
	return tag, classify(err)
}

func (d *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil && transientErr(err) {
		rows, err = d.pool.Query(ctx, sql, args...)
	}
	return rows, classify(err)
}

func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return retryRow{ctx: ctx, pool: d.pool, sql: sql, args: args}
}

// retryRow defers execution to Scan, where pgx surfaces QueryRow errors.
type retryRow struct {
	ctx  context.Context
	pool *pgxpool.Pool
	sql  string
	args []any
}

func (r retryRow) Scan(dest ...any) error {
	err := r.pool.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
	if err != nil && transientErr(err) {
		err = r.pool.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
	}
	return classify(err)
}

// transientErr reports whether the statement never reached the server and is
// therefore safe to run again.
func transientErr(err error) bool {
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func classify(err error) error {
	if err != nil && transientErr(err) {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	return err
}
