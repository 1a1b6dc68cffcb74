package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type PostgresCursorDriver struct {
	pool PgxPool
}

func NewPostgresCursorDriver(pool PgxPool) *PostgresCursorDriver {
	return &PostgresCursorDriver{pool: pool}
}

// LoadCursor returns found=false when the source has never been synchronized.
func (d *PostgresCursorDriver) LoadCursor(ctx context.Context, source string) (CursorRow, bool, error) {
	row := CursorRow{Source: source}
	err := d.pool.QueryRow(ctx,
		`SELECT updated_at, record_id FROM sync_cursors WHERE source = $1`,
		source,
	).Scan(&row.UpdatedAt, &row.RecordID)
	if errors.Is(err, pgx.ErrNoRows) {
		return CursorRow{Source: source}, false, nil
	}
	if err != nil {
		return CursorRow{}, false, newDriverError("LoadCursor", err)
	}
	return row, true, nil
}

// SaveCursor upserts the cursor. The stored value only ever moves forward.
func (d *PostgresCursorDriver) SaveCursor(ctx context.Context, c CursorRow) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO sync_cursors (source, updated_at, record_id, saved_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (source) DO UPDATE
		SET updated_at = EXCLUDED.updated_at, record_id = EXCLUDED.record_id, saved_at = now()
		WHERE (sync_cursors.updated_at, sync_cursors.record_id) < (EXCLUDED.updated_at, EXCLUDED.record_id)`,
		c.Source, c.UpdatedAt, c.RecordID,
	)
	if err != nil {
		return newDriverError("SaveCursor", err)
	}
	return nil
}
