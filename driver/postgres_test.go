package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postColumns = []string{
	"id", "title", "body", "category", "author", "language",
	"created_at", "updated_at", "view_count", "like_count", "deleted_at", "tags",
}

func TestPostgresSourceDriver_ListChanged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	created := after.Add(time.Hour)
	deletedAt := after.Add(3 * time.Hour)
	var live *time.Time

	mock.ExpectQuery(`(?s)SELECT p\.id.*FROM posts p.*WHERE \(p\.updated_at, p\.id\) > \(\$1, \$2\).*ORDER BY p\.updated_at ASC, p\.id ASC.*LIMIT \$3`).
		WithArgs(after, "p0", 2).
		WillReturnRows(pgxmock.NewRows(postColumns).
			AddRow("p1", "Django Basics", "body", "backend", "kim", "en", created, created, int64(10), int64(2), live, []string{"django", "python"}).
			AddRow("p2", "Gone", "", "", "", "", created, after.Add(3*time.Hour), int64(0), int64(0), &deletedAt, []string{}))

	d := NewPostgresSourceDriver(mock)
	rows, err := d.ListChanged(context.Background(), after, "p0", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "p1", rows[0].ID)
	assert.Equal(t, []string{"django", "python"}, rows[0].Tags)
	assert.Nil(t, rows[0].DeletedAt)
	assert.Equal(t, int64(10), rows[0].ViewCount)
	require.NotNil(t, rows[1].DeletedAt)
	assert.True(t, rows[1].DeletedAt.Equal(deletedAt))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceDriver_ListChanged_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT p\.id`).
		WithArgs(time.Time{}, "", 10).
		WillReturnError(errors.New("connection reset"))

	d := NewPostgresSourceDriver(mock)
	_, err = d.ListChanged(context.Background(), time.Time{}, "", 10)
	require.Error(t, err)

	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ListChanged", de.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceDriver_GetByIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	var live *time.Time
	mock.ExpectQuery(`(?s)WHERE p\.id = ANY\(\$1\)`).
		WithArgs([]string{"p1", "missing"}).
		WillReturnRows(pgxmock.NewRows(postColumns).
			AddRow("p1", "T", "B", "", "", "", now, now, int64(0), int64(0), live, []string{}))

	d := NewPostgresSourceDriver(mock)
	rows, err := d.GetByIDs(context.Background(), []string{"p1", "missing"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceDriver_GetByIDs_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows, err := NewPostgresSourceDriver(mock).GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceDriver_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts WHERE deleted_at IS NULL`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := NewPostgresSourceDriver(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCursorDriver_Load(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setup     func(mock pgxmock.PgxPoolIface)
		wantFound bool
		wantErr   bool
	}{
		{
			name: "stored cursor",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT updated_at, record_id FROM sync_cursors WHERE source = \$1`).
					WithArgs("posts").
					WillReturnRows(pgxmock.NewRows([]string{"updated_at", "record_id"}).AddRow(ts, "p9"))
			},
			wantFound: true,
		},
		{
			name: "never synchronized",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT updated_at, record_id FROM sync_cursors`).
					WithArgs("posts").
					WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name: "database error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT updated_at, record_id FROM sync_cursors`).
					WithArgs("posts").
					WillReturnError(errors.New("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			row, found, err := NewPostgresCursorDriver(mock).LoadCursor(context.Background(), "posts")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, "posts", row.Source)
			if tt.wantFound {
				assert.True(t, row.UpdatedAt.Equal(ts))
				assert.Equal(t, "p9", row.RecordID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresCursorDriver_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)INSERT INTO sync_cursors.*ON CONFLICT \(source\) DO UPDATE.*WHERE \(sync_cursors\.updated_at, sync_cursors\.record_id\) <`).
		WithArgs("posts", ts, "p9").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresCursorDriver(mock).SaveCursor(context.Background(), CursorRow{Source: "posts", UpdatedAt: ts, RecordID: "p9"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchLogDriver_InsertBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	rows := []SearchLogRow{
		{Query: "Django", ResultsCount: 3, ResponseTimeMS: 12, SearchTime: now},
		{Query: "Django", ClickedResultID: "p1", SearchTime: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO search_logs`).
		WithArgs("Django", int64(3), int64(12), "", "", "", "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO popular_searches`).
		WithArgs("Django", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO search_logs`).
		WithArgs("Django", int64(0), int64(0), "p1", "", "", "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresSearchLogDriver(mock).InsertBatch(context.Background(), rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchLogDriver_InsertBatch_RollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO search_logs`).
		WithArgs("q", int64(0), int64(0), "", "", "", "", now).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewPostgresSearchLogDriver(mock).InsertBatch(context.Background(), []SearchLogRow{{Query: "q", SearchTime: now}})
	require.Error(t, err)

	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "InsertBatch", de.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchLogDriver_TopQueries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)FROM popular_searches.*ORDER BY search_count DESC, last_searched DESC`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"query", "search_count", "last_searched"}).
			AddRow("django", int64(9), now).
			AddRow("go", int64(4), now))

	out, err := NewPostgresSearchLogDriver(mock).TopQueries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "django", out[0].Query)
	assert.Equal(t, int64(9), out[0].SearchCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchLogDriver_AggregateCounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Now().Add(-24 * time.Hour).UTC()
	mock.ExpectQuery(`(?s)SELECT lower\(query\), COUNT\(\*\).*GROUP BY lower\(query\)`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"lower", "count"}).
			AddRow("django tutorial", int64(5)).
			AddRow("django", int64(2)))

	out, err := NewPostgresSearchLogDriver(mock).AggregateCounts(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"django tutorial": 5, "django": 2}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS sync_cursors.*search_logs.*popular_searches`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
