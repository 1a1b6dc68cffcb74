package driver

import (
	"context"

	"post-search/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool the drivers use. pgxmock pools satisfy it.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// NewPostgresPool opens and pings a connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, &DriverError{
			Op:  "NewPostgresPool",
			Err: "failed to parse database URL: " + err.Error(),
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, &DriverError{
			Op:  "NewPostgresPool",
			Err: "failed to create database pool: " + err.Error(),
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &DriverError{
			Op:          "NewPostgresPool",
			Err:         "failed to ping database: " + err.Error(),
			Unavailable: true,
		}
	}

	logger.Logger.Info("Database connected successfully")
	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_cursors (
	source     TEXT PRIMARY KEY,
	updated_at TIMESTAMPTZ NOT NULL,
	record_id  TEXT NOT NULL,
	saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS search_logs (
	id                BIGSERIAL PRIMARY KEY,
	query             TEXT NOT NULL,
	results_count     BIGINT NOT NULL,
	response_time_ms  BIGINT NOT NULL,
	clicked_result_id TEXT,
	user_id           TEXT,
	ip                TEXT,
	user_agent        TEXT,
	search_time       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS search_logs_search_time_idx ON search_logs (search_time);
CREATE TABLE IF NOT EXISTS popular_searches (
	query         TEXT PRIMARY KEY,
	search_count  BIGINT NOT NULL DEFAULT 0,
	last_searched TIMESTAMPTZ NOT NULL
);`

// EnsureSchema creates the tables owned by this service. Source tables are not touched.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return newDriverError("EnsureSchema", err)
	}
	return nil
}
