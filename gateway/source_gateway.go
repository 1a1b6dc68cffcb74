package gateway

import (
	"context"
	"time"

	"post-search/domain"
	"post-search/driver"
)

type SourceDriver interface {
	ListChanged(ctx context.Context, afterUpdatedAt time.Time, afterID string, limit int) ([]driver.PostRow, error)
	GetByIDs(ctx context.Context, ids []string) ([]driver.PostRow, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// SourceGateway adapts a Postgres or Mongo source driver to port.SourceStore.
type SourceGateway struct {
	driver SourceDriver
	name   string
}

func NewSourceGateway(driver SourceDriver, name string) *SourceGateway {
	return &SourceGateway{driver: driver, name: name}
}

func (g *SourceGateway) Name() string {
	return g.name
}

func (g *SourceGateway) ListChanged(ctx context.Context, after domain.SyncCursor, limit int) ([]domain.SourceRecord, error) {
	rows, err := g.driver.ListChanged(ctx, after.UpdatedAt, after.RecordID, limit)
	if err != nil {
		return nil, repositoryError("ListChanged", err)
	}
	return toSourceRecords(rows), nil
}

func (g *SourceGateway) GetByIDs(ctx context.Context, ids []string) ([]domain.SourceRecord, error) {
	rows, err := g.driver.GetByIDs(ctx, ids)
	if err != nil {
		return nil, repositoryError("GetByIDs", err)
	}
	return toSourceRecords(rows), nil
}

func (g *SourceGateway) Count(ctx context.Context) (int64, error) {
	n, err := g.driver.Count(ctx)
	if err != nil {
		return 0, repositoryError("Count", err)
	}
	return n, nil
}

func (g *SourceGateway) Ping(ctx context.Context) error {
	if err := g.driver.Ping(ctx); err != nil {
		return repositoryError("Ping", err)
	}
	return nil
}

func toSourceRecords(rows []driver.PostRow) []domain.SourceRecord {
	out := make([]domain.SourceRecord, len(rows))
	for i, r := range rows {
		out[i] = domain.SourceRecord{
			ID:        r.ID,
			Title:     r.Title,
			Body:      r.Body,
			Tags:      r.Tags,
			Category:  r.Category,
			Author:    r.Author,
			Language:  r.Language,
			CreatedAt: r.CreatedAt.UTC(),
			UpdatedAt: r.UpdatedAt.UTC(),
			ViewCount: r.ViewCount,
			LikeCount: r.LikeCount,
			Deleted:   r.DeletedAt != nil,
		}
	}
	return out
}
