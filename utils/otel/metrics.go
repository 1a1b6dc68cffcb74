package otel

import (
	"context"
	"time"

	"post-search/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all OTel metric instruments for post-search. It stays nil when
// OTel is disabled; every Record method is a no-op on a nil receiver.
var Metrics *SearchMetrics

// SearchMetrics contains all metric instruments.
type SearchMetrics struct {
	UpsertedTotal   metric.Int64Counter
	DeletedTotal    metric.Int64Counter
	FailuresTotal   metric.Int64Counter
	SyncDuration    metric.Float64Histogram
	QueryDuration   metric.Float64Histogram
	CacheRequests   metric.Int64Counter
	CacheComputes   metric.Int64Counter
	LogDroppedTotal metric.Int64Counter
}

// InitMetrics initializes all metric instruments.
func InitMetrics() error {
	meter := otel.Meter("post-search")

	upserted, err := meter.Int64Counter("post_search_sync_upserted_total",
		metric.WithDescription("Documents upserted into the index"),
	)
	if err != nil {
		return err
	}

	deleted, err := meter.Int64Counter("post_search_sync_deleted_total",
		metric.WithDescription("Documents deleted from the index"),
	)
	if err != nil {
		return err
	}

	failures, err := meter.Int64Counter("post_search_sync_failures_total",
		metric.WithDescription("Records that could not be synchronized"),
	)
	if err != nil {
		return err
	}

	syncDuration, err := meter.Float64Histogram("post_search_sync_duration_seconds",
		metric.WithDescription("Synchronizer run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	queryDuration, err := meter.Float64Histogram("post_search_query_duration_seconds",
		metric.WithDescription("Query duration in seconds by query class"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	cacheRequests, err := meter.Int64Counter("post_search_cache_requests_total",
		metric.WithDescription("Result cache lookups by class and outcome"),
	)
	if err != nil {
		return err
	}

	cacheComputes, err := meter.Int64Counter("post_search_cache_computes_total",
		metric.WithDescription("Result cache computations by class"),
	)
	if err != nil {
		return err
	}

	dropped, err := meter.Int64Counter("post_search_log_dropped_total",
		metric.WithDescription("Search log entries dropped because the buffer was full"),
	)
	if err != nil {
		return err
	}

	Metrics = &SearchMetrics{
		UpsertedTotal:   upserted,
		DeletedTotal:    deleted,
		FailuresTotal:   failures,
		SyncDuration:    syncDuration,
		QueryDuration:   queryDuration,
		CacheRequests:   cacheRequests,
		CacheComputes:   cacheComputes,
		LogDroppedTotal: dropped,
	}

	return nil
}

func (m *SearchMetrics) RecordSync(ctx context.Context, r *domain.SyncReport) {
	if m == nil || r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", string(r.Mode)),
		attribute.String("source", r.Source),
		attribute.String("status", string(r.Status)),
	)
	m.UpsertedTotal.Add(ctx, int64(r.Upserted), attrs)
	m.DeletedTotal.Add(ctx, int64(r.Deleted), attrs)
	m.FailuresTotal.Add(ctx, int64(len(r.Failures)), attrs)
	m.SyncDuration.Record(ctx, r.Duration().Seconds(), attrs)
}

func (m *SearchMetrics) RecordQuery(ctx context.Context, class domain.QueryClass, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("class", string(class)),
		attribute.Bool("error", err != nil),
	))
}

// RecordCache counts one lookup; outcome is hit, miss or stale.
func (m *SearchMetrics) RecordCache(ctx context.Context, class domain.QueryClass, outcome string) {
	if m == nil {
		return
	}
	m.CacheRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", string(class)),
		attribute.String("outcome", outcome),
	))
}

func (m *SearchMetrics) RecordCompute(ctx context.Context, class domain.QueryClass) {
	if m == nil {
		return
	}
	m.CacheComputes.Add(ctx, 1, metric.WithAttributes(attribute.String("class", string(class))))
}

func (m *SearchMetrics) RecordLogDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.LogDroppedTotal.Add(ctx, 1)
}
