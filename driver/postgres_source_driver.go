package driver

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const selectPostsSQL = `
	SELECT p.id, p.title, COALESCE(p.body, ''), COALESCE(p.category, ''), COALESCE(p.author, ''),
	       COALESCE(p.language, ''), p.created_at, p.updated_at, p.view_count, p.like_count, p.deleted_at,
	       COALESCE(
	           array_agg(t.tag ORDER BY t.tag) FILTER (WHERE t.tag IS NOT NULL),
	           '{}'
	       ) AS tags
	FROM posts p
	LEFT JOIN post_tags t ON t.post_id = p.id`

// PostgresSourceDriver reads posts and their tags from Postgres.
type PostgresSourceDriver struct {
	pool PgxPool
}

func NewPostgresSourceDriver(pool PgxPool) *PostgresSourceDriver {
	return &PostgresSourceDriver{pool: pool}
}

// ListChanged uses keyset pagination on (updated_at, id), oldest first.
func (d *PostgresSourceDriver) ListChanged(ctx context.Context, afterUpdatedAt time.Time, afterID string, limit int) ([]PostRow, error) {
	query := selectPostsSQL + `
	WHERE (p.updated_at, p.id) > ($1, $2)
	GROUP BY p.id
	ORDER BY p.updated_at ASC, p.id ASC
	LIMIT $3`

	rows, err := d.pool.Query(ctx, query, afterUpdatedAt, afterID, limit)
	if err != nil {
		return nil, newDriverError("ListChanged", err)
	}
	return scanPostRows("ListChanged", rows)
}

func (d *PostgresSourceDriver) GetByIDs(ctx context.Context, ids []string) ([]PostRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := selectPostsSQL + `
	WHERE p.id = ANY($1)
	GROUP BY p.id
	ORDER BY p.updated_at ASC, p.id ASC`

	rows, err := d.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, newDriverError("GetByIDs", err)
	}
	return scanPostRows("GetByIDs", rows)
}

func (d *PostgresSourceDriver) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE deleted_at IS NULL`).Scan(&count); err != nil {
		return 0, newDriverError("Count", err)
	}
	return count, nil
}

func (d *PostgresSourceDriver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return newDriverError("Ping", err)
	}
	return nil
}

func scanPostRows(op string, rows pgx.Rows) ([]PostRow, error) {
	defer rows.Close()

	var posts []PostRow
	for rows.Next() {
		var p PostRow
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Body, &p.Category, &p.Author, &p.Language,
			&p.CreatedAt, &p.UpdatedAt, &p.ViewCount, &p.LikeCount, &p.DeletedAt, &p.Tags,
		); err != nil {
			return nil, newDriverError(op, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, newDriverError(op, err)
	}
	return posts, nil
}
