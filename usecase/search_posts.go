package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"post-search/analyzer"
	"post-search/cache"
	"post-search/domain"
	"post-search/logger"
	"post-search/port"
	"post-search/utils"
	appOtel "post-search/utils/otel"
)

const (
	// Title matches weigh twice as much as body matches.
	TitleBoost = 2.0
	BodyBoost  = 1.0

	defaultQueryTimeout = 3 * time.Second
)

type SearchOptions struct {
	Limits       domain.QueryLimits
	QueryTimeout time.Duration
	MaxQueryLen  int
}

type SearchPostsUsecase struct {
	index     port.SearchIndex
	registry  *analyzer.Registry
	cache     *cache.ResultCache
	sink      port.SearchLogSink
	sanitizer *utils.QuerySanitizer
	opts      SearchOptions
	now       func() time.Time
}

func NewSearchPostsUsecase(index port.SearchIndex, registry *analyzer.Registry, resultCache *cache.ResultCache, sink port.SearchLogSink, opts SearchOptions) *SearchPostsUsecase {
	if opts.Limits == (domain.QueryLimits{}) {
		opts.Limits = domain.DefaultQueryLimits()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	return &SearchPostsUsecase{
		index:     index,
		registry:  registry,
		cache:     resultCache,
		sink:      sink,
		sanitizer: utils.NewQuerySanitizer(opts.MaxQueryLen),
		opts:      opts,
		now:       time.Now,
	}
}

// Execute validates req, answers it from the result cache or the index, and logs
// the query. While the index is unavailable the last good envelope for the same
// request is served flagged as degraded.
func (u *SearchPostsUsecase) Execute(ctx context.Context, req domain.QueryRequest, meta domain.RequestMeta) (*domain.ResponseEnvelope, error) {
	start := u.now()
	ctx = logger.WithQueryClass(ctx, string(domain.ClassSearch))

	text, err := u.sanitizer.Sanitize(req.Text)
	if err != nil {
		return nil, &domain.ValidationError{Field: "query", Reason: err.Error()}
	}
	req.Text = text

	q, err := req.Normalize(u.opts.Limits)
	if err != nil {
		return nil, err
	}

	fp := domain.Fingerprint(q)
	env, err := u.cache.GetOrCompute(ctx, domain.ClassSearch, fp, func(ctx context.Context) (*domain.ResponseEnvelope, error) {
		return u.compute(ctx, q)
	})
	if err != nil {
		appOtel.Metrics.RecordQuery(ctx, domain.ClassSearch, u.now().Sub(start), err)
		if !domain.IsUnavailable(err) {
			return nil, err
		}
		stale, ok := cache.Stale[*domain.ResponseEnvelope](u.cache, fp)
		if !ok {
			return nil, err
		}
		logger.FromContext(ctx).Warn("index unavailable, serving stale results", "query", q.Text, "error", err)
		env = stale.AsDegraded()
	} else {
		appOtel.Metrics.RecordQuery(ctx, domain.ClassSearch, u.now().Sub(start), nil)
	}

	u.record(q.Text, env.Total, u.now().Sub(start), meta)
	return env, nil
}

func (u *SearchPostsUsecase) compute(ctx context.Context, q domain.QueryRequest) (*domain.ResponseEnvelope, error) {
	start := u.now()
	ctx, cancel := context.WithTimeout(ctx, u.opts.QueryTimeout)
	defer cancel()

	res, err := u.index.Search(ctx, u.Plan(q))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !domain.IsTimeout(err) {
			err = &domain.TimeoutError{Op: "Search", Err: err.Error()}
		}
		return nil, fmt.Errorf("search posts: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, domain.NewSearchHit(h.Document, h.Score))
	}
	return domain.NewResponseEnvelope(res.Total, hits, q.Page, q.PageSize, u.now().Sub(start)), nil
}

// Plan turns a normalized request into an index query. An empty text with no
// filters becomes the newest-first listing.
func (u *SearchPostsUsecase) Plan(q domain.QueryRequest) domain.IndexQuery {
	iq := domain.IndexQuery{
		Text:       q.Text,
		Filters:    q.Filters,
		Sort:       q.Sort,
		Offset:     q.Offset(),
		Limit:      q.PageSize,
		TitleBoost: TitleBoost,
		BodyBoost:  BodyBoost,
	}
	if q.IsListing() && q.Sort == domain.SortRelevance {
		iq.Sort = domain.SortDate
	}
	if q.Text != "" {
		iq.Terms = u.registry.AnalyzeAll(q.Text)
	}
	return iq
}

func (u *SearchPostsUsecase) record(query string, total int64, elapsed time.Duration, meta domain.RequestMeta) {
	if u.sink == nil {
		return
	}
	u.sink.Record(domain.SearchLogEntry{
		Query:        query,
		ResultsCount: total,
		ResponseTime: elapsed,
		UserID:       meta.UserID,
		ClientIP:     meta.ClientIP,
		UserAgent:    meta.UserAgent,
		Timestamp:    u.now(),
	})
}
