package port

import (
	"context"

	"post-search/domain"
)

// SourceStore is the canonical store of posts.
type SourceStore interface {
	// ListChanged returns up to limit records ordered by (updated_at, id) strictly after cursor.
	ListChanged(ctx context.Context, after domain.SyncCursor, limit int) ([]domain.SourceRecord, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.SourceRecord, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Name() string
}

// CursorStore persists one SyncCursor per source collection.
type CursorStore interface {
	Load(ctx context.Context, source string) (domain.SyncCursor, error)
	Save(ctx context.Context, cursor domain.SyncCursor) error
}

// Lease is a mutual-exclusion lock with expiry.
type Lease interface {
	// Acquire returns a release func, or domain.ErrSyncInProgress when held elsewhere.
	Acquire(ctx context.Context, name string) (release func(), err error)
}
