package usecase

import (
	"context"
	"sync"
	"time"

	"post-search/analyzer"
	"post-search/domain"
	"post-search/driver"
	"post-search/gateway"
	"post-search/mapper"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func post(id, title, body string, minute int, tags ...string) driver.PostRow {
	ts := baseTime.Add(time.Duration(minute) * time.Minute)
	return driver.PostRow{
		ID:        id,
		Title:     title,
		Body:      body,
		Tags:      tags,
		Category:  "backend",
		Author:    "kim",
		Language:  "en",
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func newTestMapper() *mapper.Mapper {
	return mapper.New(analyzer.NewDefaultRegistry(nil, analyzer.Options{}))
}

// countingIndex wraps the in-memory index, counts calls and injects failures.
type countingIndex struct {
	*driver.MemoryIndex

	mu           sync.Mutex
	upserts      int
	deletes      int
	searches     int
	facets       int
	synonymCalls int
	unhealthy    bool

	failUpsert func(docs []domain.IndexDocument) error
	failDelete func(ids []string) error
	searchErr  error
	facetErr   error
}

func newCountingIndex() *countingIndex {
	return &countingIndex{MemoryIndex: driver.NewMemoryIndex()}
}

func (c *countingIndex) Upsert(ctx context.Context, docs []domain.IndexDocument) error {
	c.mu.Lock()
	c.upserts++
	fail := c.failUpsert
	c.mu.Unlock()
	if fail != nil {
		if err := fail(docs); err != nil {
			return err
		}
	}
	return c.MemoryIndex.Upsert(ctx, docs)
}

func (c *countingIndex) Delete(ctx context.Context, ids []string) error {
	c.mu.Lock()
	c.deletes++
	fail := c.failDelete
	c.mu.Unlock()
	if fail != nil {
		if err := fail(ids); err != nil {
			return err
		}
	}
	return c.MemoryIndex.Delete(ctx, ids)
}

func (c *countingIndex) Search(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	c.mu.Lock()
	c.searches++
	err := c.searchErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryIndex.Search(ctx, q)
}

func (c *countingIndex) Facet(ctx context.Context, field string) ([]domain.FacetCount, error) {
	c.mu.Lock()
	c.facets++
	err := c.facetErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryIndex.Facet(ctx, field)
}

func (c *countingIndex) RegisterSynonyms(ctx context.Context, synonyms map[string][]string) error {
	c.mu.Lock()
	c.synonymCalls++
	c.mu.Unlock()
	return c.MemoryIndex.RegisterSynonyms(ctx, synonyms)
}

func (c *countingIndex) Healthy(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unhealthy
}

func (c *countingIndex) setSearchErr(err error) {
	c.mu.Lock()
	c.searchErr = err
	c.mu.Unlock()
}

func (c *countingIndex) mutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts + c.deletes
}

func (c *countingIndex) searchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searches
}

type recordingPurger struct {
	mu      sync.Mutex
	classes []domain.QueryClass
}

func (p *recordingPurger) Purge(ctx context.Context, classes ...domain.QueryClass) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classes = append(p.classes, classes...)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []domain.SearchLogEntry
}

func (s *recordingSink) Record(e domain.SearchLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) all() []domain.SearchLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SearchLogEntry(nil), s.entries...)
}

type syncFixture struct {
	source      *driver.MemorySourceDriver
	index       *countingIndex
	cursors     *gateway.CursorGateway
	lease       *driver.MemoryLease
	suggestions *driver.MemorySuggestionStore
	purger      *recordingPurger
	usecase     *SyncUsecase
}

func newSyncFixture(opts SyncOptions, rows ...driver.PostRow) *syncFixture {
	f := &syncFixture{
		source:      driver.NewMemorySourceDriver(rows...),
		index:       newCountingIndex(),
		cursors:     gateway.NewCursorGateway(driver.NewMemoryCursorDriver()),
		lease:       driver.NewMemoryLease(),
		suggestions: driver.NewMemorySuggestionStore(),
		purger:      &recordingPurger{},
	}
	if opts.RetryInitial == 0 {
		opts.RetryInitial = time.Millisecond
	}
	f.usecase = NewSyncUsecase(SyncDeps{
		Source:      gateway.NewSourceGateway(f.source, "posts"),
		Index:       f.index,
		Cursors:     f.cursors,
		Lease:       f.lease,
		Mapper:      newTestMapper(),
		Suggestions: f.suggestions,
		Cache:       f.purger,
	}, opts)
	return f
}
