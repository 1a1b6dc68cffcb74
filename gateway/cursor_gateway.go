package gateway

import (
	"context"

	"post-search/domain"
	"post-search/driver"
)

type CursorDriver interface {
	LoadCursor(ctx context.Context, source string) (driver.CursorRow, bool, error)
	SaveCursor(ctx context.Context, c driver.CursorRow) error
}

// CursorGateway adapts a cursor driver to port.CursorStore.
type CursorGateway struct {
	driver CursorDriver
}

func NewCursorGateway(driver CursorDriver) *CursorGateway {
	return &CursorGateway{driver: driver}
}

// Load returns the zero cursor for a source that was never synchronized.
func (g *CursorGateway) Load(ctx context.Context, source string) (domain.SyncCursor, error) {
	row, found, err := g.driver.LoadCursor(ctx, source)
	if err != nil {
		return domain.SyncCursor{}, repositoryError("LoadCursor", err)
	}
	if !found {
		return domain.SyncCursor{Source: source}, nil
	}
	return domain.SyncCursor{Source: row.Source, UpdatedAt: row.UpdatedAt.UTC(), RecordID: row.RecordID}, nil
}

func (g *CursorGateway) Save(ctx context.Context, c domain.SyncCursor) error {
	if c.IsZero() {
		return nil
	}
	err := g.driver.SaveCursor(ctx, driver.CursorRow{Source: c.Source, UpdatedAt: c.UpdatedAt, RecordID: c.RecordID})
	if err != nil {
		return repositoryError("SaveCursor", err)
	}
	return nil
}
