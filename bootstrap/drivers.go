package bootstrap

import (
	"context"
	"fmt"
	"time"

	"post-search/cache"
	"post-search/config"
	"post-search/driver"
	"post-search/gateway"
	"post-search/logger"
	"post-search/port"

	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
)

// backends are the stores behind the ports, chosen by the source backend.
type backends struct {
	source      port.SourceStore
	index       port.SearchIndex
	cursors     port.CursorStore
	logs        port.SearchLogRepository
	lease       port.Lease
	suggestions port.SuggestionStore
	tier        cache.Tier
	redis       *redis.Client
	closers     []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func initBackends(ctx context.Context, cfg *config.Config, opts Options) (*backends, error) {
	if cfg.SourceBackend == config.BackendMemory {
		return initMemoryBackends(opts)
	}

	b := &backends{}
	if err := b.initPostgres(ctx, cfg); err != nil {
		b.close()
		return nil, err
	}
	if cfg.SourceBackend == config.BackendMongo {
		if err := b.initMongo(ctx, cfg.Mongo); err != nil {
			b.close()
			return nil, err
		}
	}

	msClient, err := initMeilisearchClient(cfg.Meilisearch)
	if err != nil {
		b.close()
		return nil, err
	}
	b.index = gateway.NewSearchIndexGateway(
		driver.NewMeilisearchDriver(msClient, cfg.Meilisearch.Index, cfg.Meilisearch.Timeout),
	)

	if err := b.initRedis(ctx, cfg); err != nil {
		b.close()
		return nil, err
	}
	return b, nil
}

// initMemoryBackends keeps every store in process, optionally seeded from a
// JSON file of posts.
func initMemoryBackends(opts Options) (*backends, error) {
	source := driver.NewMemorySourceDriver()
	if opts.SeedFile != "" {
		seeded, err := driver.LoadMemorySource(opts.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("seed memory source: %w", err)
		}
		source = seeded
	}

	return &backends{
		source:      gateway.NewSourceGateway(source, "posts"),
		index:       driver.NewMemoryIndex(),
		cursors:     gateway.NewCursorGateway(driver.NewMemoryCursorDriver()),
		logs:        gateway.NewSearchLogGateway(driver.NewMemorySearchLogDriver()),
		lease:       driver.NewMemoryLease(),
		suggestions: driver.NewMemorySuggestionStore(),
	}, nil
}

// initPostgres opens the pool used for the cursor store and the search log,
// and for the source store unless posts live in Mongo.
func (b *backends) initPostgres(ctx context.Context, cfg *config.Config) error {
	dbCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()

	pool, err := driver.NewPostgresPool(dbCtx, cfg.Database.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	b.closers = append(b.closers, pool.Close)

	if err := driver.EnsureSchema(dbCtx, pool); err != nil {
		return fmt.Errorf("database schema: %w", err)
	}

	b.cursors = gateway.NewCursorGateway(driver.NewPostgresCursorDriver(pool))
	b.logs = gateway.NewSearchLogGateway(driver.NewPostgresSearchLogDriver(pool))
	b.source = gateway.NewSourceGateway(driver.NewPostgresSourceDriver(pool), "posts")
	return nil
}

func (b *backends) initMongo(ctx context.Context, cfg config.MongoConfig) error {
	client, err := driver.NewMongoClient(ctx, cfg.URI)
	if err != nil {
		return fmt.Errorf("mongo init: %w", err)
	}
	b.closers = append(b.closers, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Logger.Warn("mongo disconnect failed", "err", err)
		}
	})

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	b.source = gateway.NewSourceGateway(driver.NewMongoSourceDriver(coll), cfg.Collection)
	return nil
}

// initRedis wires the lease, the suggestion store and the optional cache tier.
// Without REDIS_URL they stay in process.
func (b *backends) initRedis(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.URL == "" {
		logger.Logger.Info("Redis not configured, using in-process lease and suggestions")
		b.lease = driver.NewMemoryLease()
		b.suggestions = driver.NewMemorySuggestionStore()
		return nil
	}

	client, err := driver.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	b.redis = client
	b.closers = append(b.closers, func() { _ = client.Close() })

	prefix := cfg.Redis.KeyPrefix
	b.lease = driver.NewRedisLease(client, prefix, cfg.Sync.LeaseTTL)
	b.suggestions = driver.NewRedisSuggestionStore(client, prefix)
	if cfg.Cache.RedisTier {
		b.tier = driver.NewRedisCacheTier(client, prefix)
	}
	return nil
}

// initMeilisearchClient connects to Meilisearch, waiting for it to report healthy.
func initMeilisearchClient(cfg config.MeilisearchConfig) (meilisearch.ServiceManager, error) {
	const maxRetries = 5
	const retryDelay = 5 * time.Second

	logger.Logger.Info("Connecting to Meilisearch", "host", cfg.Host)

	var msClient meilisearch.ServiceManager
	for i := range maxRetries {
		msClient = meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))

		if _, healthErr := msClient.Health(); healthErr != nil {
			logger.Logger.Warn("Meilisearch not ready, retrying", "attempt", i+1, "max", maxRetries, "err", healthErr)
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
				continue
			}
			return nil, fmt.Errorf("failed to connect to Meilisearch after %d attempts: %w", maxRetries, healthErr)
		}

		logger.Logger.Info("Connected to Meilisearch successfully")
		break
	}
	return msClient, nil
}
