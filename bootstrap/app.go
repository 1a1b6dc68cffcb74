// Package bootstrap wires configuration, stores and use cases into a running
// post-search service.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"post-search/analyzer"
	"post-search/cache"
	"post-search/config"
	"post-search/consumer"
	"post-search/logger"
	"post-search/mapper"
	"post-search/rest"
	"post-search/searchlog"
	"post-search/usecase"
	appOtel "post-search/utils/otel"
)

// Options select how the service is assembled.
type Options struct {
	// Memory keeps every store in process.
	Memory bool
	// SeedFile is a JSON array of posts loaded into the in-memory source.
	SeedFile string
}

// App holds the use cases and the stores behind them.
type App struct {
	Config     *config.Config
	Sync       *usecase.SyncUsecase
	DryRunSync *usecase.SyncUsecase
	Search     *usecase.SearchPostsUsecase
	Suggest    *usecase.SuggestUsecase
	Popular    *usecase.PopularTermsUsecase
	Categories *usecase.CategoriesUsecase
	Health     *usecase.HealthUsecase

	recorder *searchlog.Recorder
	backends *backends
}

// Build connects every store named by cfg and assembles the use cases.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	tok, err := analyzer.InitTokenizer()
	if err != nil {
		logger.Logger.Error("Failed to initialize tokenizer, Japanese text falls back to the generic analyzer", "err", err)
	}
	registry := analyzer.NewDefaultRegistry(tok, cfg.Analysis.AnalyzerOptions())

	b, err := initBackends(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	if err := b.index.EnsureIndex(ctx); err != nil {
		b.close()
		return nil, fmt.Errorf("ensure search index: %w", err)
	}

	resultCache, err := cache.New(cfg.ResultCacheConfig(), b.tier)
	if err != nil {
		b.close()
		return nil, err
	}

	recorder := searchlog.NewRecorder(b.logs, searchlog.DefaultConfig(), logger.Logger)

	syncUsecase := usecase.NewSyncUsecase(usecase.SyncDeps{
		Source:       b.source,
		Index:        b.index,
		Cursors:      b.cursors,
		Lease:        b.lease,
		Mapper:       mapper.New(registry),
		Suggestions:  b.suggestions,
		Cache:        resultCache,
		BaseSynonyms: cfg.Analysis.Synonyms,
		TagSynonyms:  cfg.Analysis.TagSynonyms,
	}, usecase.SyncOptions{
		BatchSize:      cfg.Sync.BatchSize,
		MaxRetries:     cfg.Sync.MaxRetries,
		RetryInitial:   cfg.Sync.RetryInitial,
		PagesPerSecond: cfg.Sync.PagesPerSecond,
	})

	app := &App{
		Config:     cfg,
		Sync:       syncUsecase,
		DryRunSync: syncUsecase.WithDryRun(true),
		Search: usecase.NewSearchPostsUsecase(b.index, registry, resultCache, recorder, usecase.SearchOptions{
			Limits:       cfg.QueryLimits(),
			QueryTimeout: cfg.Query.Timeout,
			MaxQueryLen:  cfg.Query.MaxQueryLength,
		}),
		Suggest:    usecase.NewSuggestUsecase(b.suggestions, resultCache, cfg.Query.DefaultSuggestLimit, cfg.Query.MaxSuggestLimit),
		Popular:    usecase.NewPopularTermsUsecase(b.logs, recorder, b.suggestions, resultCache, cfg.Sync.PopularityWindow),
		Categories: usecase.NewCategoriesUsecase(b.index, resultCache, cfg.Analysis.DefaultCategories),
		Health:     usecase.NewHealthUsecase(b.index, b.source, 0),
		recorder:   recorder,
		backends:   b,
	}
	return app, nil
}

// Handler returns the REST handler over the app's use cases.
func (a *App) Handler() *rest.Handler {
	return rest.NewHandler(a.Search, a.Suggest, a.Popular, a.Categories, a.Sync, a.DryRunSync, a.Health)
}

// Close flushes the search log and closes every store.
func (a *App) Close() {
	a.recorder.Close()
	a.backends.close()
}

// Run serves the API and runs the background jobs until ctx is cancelled,
// then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(config.LoadOptions{Memory: opts.Memory})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ── OpenTelemetry ──
	otelCfg := cfg.TelemetryConfig()
	otelShutdown, err := appOtel.InitProvider(ctx, otelCfg)
	if err != nil {
		fmt.Printf("Failed to initialize OpenTelemetry: %v\n", err)
		otelCfg.Enabled = false
		otelShutdown = func(context.Context) error { return nil }
	}

	// ── Logger ──
	logger.InitWithOTel(otelCfg.Enabled)
	logger.Logger.Info("Starting post-search",
		"service", otelCfg.ServiceName,
		"version", otelCfg.ServiceVersion,
		"otel_enabled", otelCfg.Enabled,
		"memory", opts.Memory,
	)

	app, err := Build(ctx, cfg, opts)
	if err != nil {
		logger.Logger.Error("Failed to initialize post-search", "err", err)
		_ = otelShutdown(context.Background())
		return err
	}

	// ── Redis Streams consumer ──
	var redisConsumer *consumer.Consumer
	consumerCfg := consumer.ConfigFromEnv()
	switch {
	case !consumerCfg.Enabled:
		logger.Logger.Info("Redis Streams consumer disabled")
	case app.backends.redis == nil:
		logger.Logger.Warn("Redis Streams consumer enabled but REDIS_URL is not set")
	default:
		handler := consumer.NewSyncEventHandler(app.Sync, consumerCfg.FlushSize, consumerCfg.FlushInterval, logger.Logger)
		redisConsumer = consumer.NewConsumer(consumerCfg, app.backends.redis, handler, logger.Logger)
		if err := redisConsumer.Start(ctx); err != nil {
			logger.Logger.Error("Failed to start Redis Streams consumer", "err", err)
			redisConsumer = nil
		} else {
			logger.Logger.Info("Redis Streams consumer started",
				"stream", consumerCfg.StreamKey,
				"group", consumerCfg.GroupName,
			)
		}
	}

	// ── Background jobs ──
	var jobs sync.WaitGroup
	jobs.Go(func() { runSyncLoop(ctx, app.Sync, cfg.Sync.Interval) })
	jobs.Go(func() { runPopularityLoop(ctx, app.Popular, cfg.Sync.PopularityInterval) })

	// ── HTTP server ──
	httpServer := newHTTPServer(app, cfg.HTTP, otelCfg)
	go func() {
		logger.Logger.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("http", "err", err)
		}
	}()

	<-ctx.Done()

	// ── Graceful shutdown ──
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http shutdown error", "err", err)
	}
	if redisConsumer != nil {
		redisConsumer.Stop()
	}
	jobs.Wait()
	app.Close()

	otelCtx, otelCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer otelCancel()
	if err := otelShutdown(otelCtx); err != nil {
		fmt.Printf("Failed to shutdown OpenTelemetry: %v\n", err)
	}
	logger.Logger.Info("post-search stopped")
	return nil
}
