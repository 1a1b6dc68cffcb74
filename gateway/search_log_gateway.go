package gateway

import (
	"context"
	"time"

	"post-search/domain"
	"post-search/driver"
)

type SearchLogDriver interface {
	InsertBatch(ctx context.Context, rows []driver.SearchLogRow) error
	TopQueries(ctx context.Context, limit int) ([]driver.PopularSearchRow, error)
	AggregateCounts(ctx context.Context, since time.Time) (map[string]int64, error)
}

// SearchLogGateway adapts a search log driver to port.SearchLogRepository.
type SearchLogGateway struct {
	driver SearchLogDriver
}

func NewSearchLogGateway(driver SearchLogDriver) *SearchLogGateway {
	return &SearchLogGateway{driver: driver}
}

func (g *SearchLogGateway) AppendBatch(ctx context.Context, entries []domain.SearchLogEntry) error {
	rows := make([]driver.SearchLogRow, len(entries))
	for i, e := range entries {
		rows[i] = driver.SearchLogRow{
			Query:           e.Query,
			ResultsCount:    e.ResultsCount,
			ResponseTimeMS:  e.ResponseTime.Milliseconds(),
			ClickedResultID: e.ClickedResultID,
			UserID:          e.UserID,
			IP:              e.ClientIP,
			UserAgent:       e.UserAgent,
			SearchTime:      e.Timestamp.UTC(),
		}
	}
	if err := g.driver.InsertBatch(ctx, rows); err != nil {
		return repositoryError("AppendBatch", err)
	}
	return nil
}

func (g *SearchLogGateway) TopQueries(ctx context.Context, limit int) ([]domain.PopularTerm, error) {
	rows, err := g.driver.TopQueries(ctx, limit)
	if err != nil {
		return nil, repositoryError("TopQueries", err)
	}
	out := make([]domain.PopularTerm, len(rows))
	for i, r := range rows {
		out[i] = domain.PopularTerm{Query: r.Query, Count: r.SearchCount, LastSearched: r.LastSearched.UTC()}
	}
	return out, nil
}

func (g *SearchLogGateway) AggregateCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	counts, err := g.driver.AggregateCounts(ctx, since)
	if err != nil {
		return nil, repositoryError("AggregateCounts", err)
	}
	return counts, nil
}
