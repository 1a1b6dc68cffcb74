package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"post-search/analyzer"
	"post-search/cache"
	"post-search/domain"
	"post-search/driver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchFixture struct {
	index   *countingIndex
	cache   *cache.ResultCache
	sink    *recordingSink
	usecase *SearchPostsUsecase
}

func newSearchFixture(t *testing.T, rows ...driver.PostRow) *searchFixture {
	t.Helper()
	index := newCountingIndex()
	m := newTestMapper()
	for _, r := range rows {
		doc, err := m.Map(domain.SourceRecord{
			ID: r.ID, Title: r.Title, Body: r.Body, Tags: r.Tags, Category: r.Category,
			Author: r.Author, Language: r.Language, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
			ViewCount: r.ViewCount, LikeCount: r.LikeCount,
		})
		require.NoError(t, err)
		require.NoError(t, index.MemoryIndex.Upsert(context.Background(), []domain.IndexDocument{doc}))
	}

	c, err := cache.New(cache.DefaultConfig(), nil)
	require.NoError(t, err)
	sink := &recordingSink{}
	uc := NewSearchPostsUsecase(index, analyzer.NewDefaultRegistry(nil, analyzer.Options{}), c, sink, SearchOptions{})
	return &searchFixture{index: index, cache: c, sink: sink, usecase: uc}
}

func TestSearchPosts_ScenarioA(t *testing.T) {
	f := newSearchFixture(t, threePosts()...)

	env, err := f.usecase.Execute(context.Background(), domain.QueryRequest{Text: "Django", Page: 1, PageSize: 20}, domain.RequestMeta{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, env.Total)
	require.Len(t, env.Results, 2)
	assert.Equal(t, "Django Elasticsearch Integration", env.Results[0].Title)
	assert.Equal(t, "Django Basics", env.Results[1].Title)
	assert.False(t, env.HasNext)
	assert.False(t, env.Degraded)
}

func TestSearchPosts_KoreanParticles(t *testing.T) {
	ko := post("k1", "장고를 배우는 방법", "장고는 파이썬 웹 프레임워크입니다.", 5)
	ko.Language = ""
	f := newSearchFixture(t, append(threePosts(), ko)...)

	for _, text := range []string{"장고", "장고를", "방법"} {
		env, err := f.usecase.Execute(context.Background(), domain.QueryRequest{Text: text, Page: 1}, domain.RequestMeta{})
		require.NoError(t, err)
		require.Len(t, env.Results, 1, text)
		assert.Equal(t, "k1", env.Results[0].ID)
	}
}

func TestSearchPosts_ValidationBeforeIO(t *testing.T) {
	from := baseTime
	to := baseTime.Add(-time.Hour)

	tests := []struct {
		name    string
		req     domain.QueryRequest
		wantErr func(error) bool
	}{
		{"page zero", domain.QueryRequest{Page: 0}, domain.IsValidation},
		{"negative page size", domain.QueryRequest{Page: 1, PageSize: -1}, domain.IsValidation},
		{"inverted date range", domain.QueryRequest{Page: 1, Filters: domain.QueryFilters{DateFrom: &from, DateTo: &to}}, domain.IsValidation},
		{"unknown sort", domain.QueryRequest{Page: 1, Sort: "random"}, domain.IsValidation},
		{"bad tag", domain.QueryRequest{Page: 1, Filters: domain.QueryFilters{Tags: []string{"a\"b"}}}, domain.IsValidation},
		{"control character", domain.QueryRequest{Text: "django\x00", Page: 1}, domain.IsValidation},
		{"offset past maximum", domain.QueryRequest{Page: 60, PageSize: 20}, domain.IsPaginationRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSearchFixture(t, threePosts()...)
			_, err := f.usecase.Execute(context.Background(), tt.req, domain.RequestMeta{})
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error %v", err)
			assert.Equal(t, 0, f.index.searchCalls())
			assert.Empty(t, f.sink.all())
		})
	}
}

func TestSearchPosts_ListingAndPagination(t *testing.T) {
	var rows []driver.PostRow
	for i := 1; i <= 25; i++ {
		rows = append(rows, post(fmt.Sprintf("p%02d", i), fmt.Sprintf("Post %d", i), "body", i))
	}
	f := newSearchFixture(t, rows...)
	ctx := context.Background()

	tests := []struct {
		page        int
		wantLen     int
		wantHasNext bool
		wantFirst   string
	}{
		{page: 1, wantLen: 10, wantHasNext: true, wantFirst: "p25"},
		{page: 2, wantLen: 10, wantHasNext: true, wantFirst: "p15"},
		{page: 3, wantLen: 5, wantHasNext: false, wantFirst: "p05"},
		{page: 4, wantLen: 0, wantHasNext: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			env, err := f.usecase.Execute(ctx, domain.QueryRequest{Page: tt.page, PageSize: 10}, domain.RequestMeta{})
			require.NoError(t, err)
			assert.EqualValues(t, 25, env.Total)
			assert.Equal(t, 3, env.TotalPages)
			assert.Len(t, env.Results, tt.wantLen)
			assert.Equal(t, tt.wantHasNext, env.HasNext)
			assert.Equal(t, env.Total > int64(env.Page*env.PageSize), env.HasNext)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, env.Results[0].ID)
			}
		})
	}
}

func TestSearchPosts_PageSizeDefaultsAndClamp(t *testing.T) {
	f := newSearchFixture(t, threePosts()...)
	ctx := context.Background()

	env, err := f.usecase.Execute(ctx, domain.QueryRequest{Page: 1}, domain.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 20, env.PageSize)

	env, err = f.usecase.Execute(ctx, domain.QueryRequest{Page: 1, PageSize: 500}, domain.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 100, env.PageSize)
}

func TestSearchPosts_Filters(t *testing.T) {
	rows := threePosts()
	rows[0].Category = "frontend"
	f := newSearchFixture(t, rows...)
	ctx := context.Background()

	env, err := f.usecase.Execute(ctx, domain.QueryRequest{
		Text:    "django",
		Page:    1,
		Filters: domain.QueryFilters{Category: " BACKEND "},
	}, domain.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, env.Results, 1)
	assert.Equal(t, "p3", env.Results[0].ID)

	env, err = f.usecase.Execute(ctx, domain.QueryRequest{
		Page:    1,
		Filters: domain.QueryFilters{Tags: []string{"Search", "django"}},
	}, domain.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, env.Results, 1)
	assert.Equal(t, "p3", env.Results[0].ID)
}

func TestSearchPosts_CachesByFingerprint(t *testing.T) {
	f := newSearchFixture(t, threePosts()...)
	ctx := context.Background()
	meta := domain.RequestMeta{UserID: "u1", ClientIP: "10.0.0.1"}

	first, err := f.usecase.Execute(ctx, domain.QueryRequest{Text: "django", Page: 1, Filters: domain.QueryFilters{Tags: []string{"search", "django"}}}, meta)
	require.NoError(t, err)
	second, err := f.usecase.Execute(ctx, domain.QueryRequest{Text: "  Django ", Page: 1, Filters: domain.QueryFilters{Tags: []string{"DJANGO", "search"}}}, meta)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.index.searchCalls())

	entries := f.sink.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "django", entries[0].Query)
	assert.EqualValues(t, 1, entries[0].ResultsCount)
	assert.Equal(t, "u1", entries[1].UserID)
	assert.Equal(t, "10.0.0.1", entries[1].ClientIP)
}

func TestSearchPosts_CachedEnvelopeSurvivesSync(t *testing.T) {
	ctx := context.Background()
	sf := newSyncFixture(SyncOptions{}, threePosts()...)
	c, err := cache.New(cache.DefaultConfig(), nil)
	require.NoError(t, err)
	sf.usecase.deps.Cache = c
	_, err = sf.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)

	search := NewSearchPostsUsecase(sf.index, analyzer.NewDefaultRegistry(nil, analyzer.Options{}), c, &recordingSink{}, SearchOptions{})
	req := domain.QueryRequest{Text: "Django", Page: 1}

	first, err := search.Execute(ctx, req, domain.RequestMeta{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.Total)

	sf.source.Put(post("p4", "Django Tips", "Small tricks.", 50, "django"))
	report, err := sf.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Upserted)

	second, err := search.Execute(ctx, req, domain.RequestMeta{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 2, second.Total)
	assert.Equal(t, 1, sf.index.searchCalls())
}

func TestSearchPosts_DegradedFallback(t *testing.T) {
	f := newSearchFixture(t, threePosts()...)
	ctx := context.Background()
	req := domain.QueryRequest{Text: "django", Page: 1}

	good, err := f.usecase.Execute(ctx, req, domain.RequestMeta{})
	require.NoError(t, err)

	f.cache.Purge(ctx, domain.ClassSearch)
	f.index.setSearchErr(&domain.IndexUnavailableError{Op: "Search", Err: "connection refused"})

	env, err := f.usecase.Execute(ctx, req, domain.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, env.Degraded)
	assert.Equal(t, good.Total, env.Total)
	assert.False(t, good.Degraded)

	_, err = f.usecase.Execute(ctx, domain.QueryRequest{Text: "elasticsearch", Page: 1}, domain.RequestMeta{})
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
}

type blockingIndex struct {
	*countingIndex
}

func (b blockingIndex) Search(ctx context.Context, q domain.IndexQuery) (*domain.IndexResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearchPosts_TimeoutSurfacesImmediately(t *testing.T) {
	c, err := cache.New(cache.DefaultConfig(), nil)
	require.NoError(t, err)
	uc := NewSearchPostsUsecase(blockingIndex{newCountingIndex()}, analyzer.NewDefaultRegistry(nil, analyzer.Options{}), c, nil,
		SearchOptions{QueryTimeout: 20 * time.Millisecond})

	_, err = uc.Execute(context.Background(), domain.QueryRequest{Text: "django", Page: 1}, domain.RequestMeta{})
	require.Error(t, err)
	assert.True(t, domain.IsTimeout(err))
	assert.Equal(t, 0, c.Len(domain.ClassSearch))
}

func TestSearchPosts_Plan(t *testing.T) {
	f := newSearchFixture(t)

	listing := f.usecase.Plan(domain.QueryRequest{Page: 2, PageSize: 10, Sort: domain.SortRelevance})
	assert.Equal(t, domain.SortDate, listing.Sort)
	assert.Nil(t, listing.Terms)
	assert.Equal(t, 10, listing.Offset)
	assert.Equal(t, 10, listing.Limit)

	textual := f.usecase.Plan(domain.QueryRequest{Text: "Running tutorials", Page: 1, PageSize: 20, Sort: domain.SortRelevance})
	assert.Equal(t, domain.SortRelevance, textual.Sort)
	assert.Equal(t, []string{"run", "tutori"}, textual.Terms[analyzer.EnglishName])
	assert.Equal(t, TitleBoost, textual.TitleBoost)
	assert.Equal(t, BodyBoost, textual.BodyBoost)

	stopwords := f.usecase.Plan(domain.QueryRequest{Text: "The", Page: 1, PageSize: 20, Sort: domain.SortRelevance})
	assert.Empty(t, stopwords.Terms[analyzer.EnglishName])
	assert.Equal(t, []string{"the"}, stopwords.Terms[analyzer.GenericName])
}
