package driver

import (
	"context"
	"time"
)

type PostgresSearchLogDriver struct {
	pool PgxPool
}

func NewPostgresSearchLogDriver(pool PgxPool) *PostgresSearchLogDriver {
	return &PostgresSearchLogDriver{pool: pool}
}

// InsertBatch writes the log rows and bumps popular_searches in one transaction.
func (d *PostgresSearchLogDriver) InsertBatch(ctx context.Context, rows []SearchLogRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return newDriverError("InsertBatch", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, r := range rows {
		if _, err = tx.Exec(ctx, `
			INSERT INTO search_logs (query, results_count, response_time_ms, clicked_result_id, user_id, ip, user_agent, search_time)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)`,
			r.Query, r.ResultsCount, r.ResponseTimeMS, r.ClickedResultID, r.UserID, r.IP, r.UserAgent, r.SearchTime,
		); err != nil {
			return newDriverError("InsertBatch", err)
		}
		if r.ClickedResultID != "" {
			continue
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO popular_searches (query, search_count, last_searched)
			VALUES (lower($1), 1, $2)
			ON CONFLICT (query) DO UPDATE
			SET search_count = popular_searches.search_count + 1,
			    last_searched = GREATEST(popular_searches.last_searched, EXCLUDED.last_searched)`,
			r.Query, r.SearchTime,
		); err != nil {
			return newDriverError("InsertBatch", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return newDriverError("InsertBatch", err)
	}
	return nil
}

func (d *PostgresSearchLogDriver) TopQueries(ctx context.Context, limit int) ([]PopularSearchRow, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT query, search_count, last_searched
		FROM popular_searches
		ORDER BY search_count DESC, last_searched DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, newDriverError("TopQueries", err)
	}
	defer rows.Close()

	var out []PopularSearchRow
	for rows.Next() {
		var r PopularSearchRow
		if err := rows.Scan(&r.Query, &r.SearchCount, &r.LastSearched); err != nil {
			return nil, newDriverError("TopQueries", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newDriverError("TopQueries", err)
	}
	return out, nil
}

// AggregateCounts returns lower(query) -> searches since the given time, excluding click rows.
func (d *PostgresSearchLogDriver) AggregateCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT lower(query), COUNT(*)
		FROM search_logs
		WHERE search_time >= $1 AND clicked_result_id IS NULL
		GROUP BY lower(query)`, since)
	if err != nil {
		return nil, newDriverError("AggregateCounts", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var q string
		var n int64
		if err := rows.Scan(&q, &n); err != nil {
			return nil, newDriverError("AggregateCounts", err)
		}
		out[q] = n
	}
	if err := rows.Err(); err != nil {
		return nil, newDriverError("AggregateCounts", err)
	}
	return out, nil
}
