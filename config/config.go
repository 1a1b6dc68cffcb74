// Package config loads service configuration from the environment and the
// optional analysis file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"post-search/cache"
	"post-search/domain"
	appOtel "post-search/utils/otel"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	// SourceBackend selects the canonical post store.
	SourceBackend string `validate:"oneof=postgres mongo memory"`

	Database    DatabaseConfig
	Mongo       MongoConfig
	Meilisearch MeilisearchConfig
	Redis       RedisConfig
	Sync        SyncConfig
	Query       QueryConfig
	Cache       CacheConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
	Analysis    AnalysisConfig
}

// DatabaseConfig is the Postgres holding posts, sync cursors and search logs.
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	Name     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Timeout  time.Duration
	SSL      SSLConfig
}

type MongoConfig struct {
	URI        string `validate:"required"`
	Database   string `validate:"required"`
	Collection string `validate:"required"`
}

type MeilisearchConfig struct {
	Host    string `validate:"required,url"`
	APIKey  string
	Index   string `validate:"required"`
	Timeout time.Duration
}

// RedisConfig is optional. Without a URL the lease, suggestions and result
// cache stay in process and the event consumer is off.
type RedisConfig struct {
	URL       string `validate:"omitempty,url"`
	KeyPrefix string
}

type SyncConfig struct {
	Interval           time.Duration `validate:"gt=0"`
	BatchSize          int           `validate:"min=1,max=10000"`
	MaxRetries         int           `validate:"min=0,max=20"`
	RetryInitial       time.Duration `validate:"gt=0"`
	PagesPerSecond     float64       `validate:"min=0"`
	LeaseTTL           time.Duration `validate:"gt=0"`
	PopularityInterval time.Duration `validate:"gt=0"`
	PopularityWindow   time.Duration `validate:"gt=0"`
}

type QueryConfig struct {
	DefaultPageSize     int           `validate:"min=1"`
	MaxPageSize         int           `validate:"min=1,gtefield=DefaultPageSize"`
	MaxOffset           int           `validate:"min=0"`
	Timeout             time.Duration `validate:"gt=0"`
	MaxQueryLength      int           `validate:"min=1"`
	DefaultSuggestLimit int           `validate:"min=1"`
	MaxSuggestLimit     int           `validate:"min=1,gtefield=DefaultSuggestLimit"`
}

type CacheConfig struct {
	SearchTTL     time.Duration `validate:"gt=0"`
	SuggestTTL    time.Duration `validate:"gt=0"`
	PopularTTL    time.Duration `validate:"gt=0"`
	CategoriesTTL time.Duration `validate:"gt=0"`
	Capacity      int           `validate:"min=1"`
	// RedisTier shares computed results across replicas through Redis.
	RedisTier bool
}

type HTTPConfig struct {
	Addr              string        `validate:"required"`
	ReadHeaderTimeout time.Duration `validate:"gt=0"`
	RequestTimeout    time.Duration `validate:"gt=0"`
}

// TelemetryConfig is the OTLP/HTTP export of traces, logs and metrics.
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string        `validate:"required"`
	ServiceVersion string        `validate:"required"`
	Environment    string        `validate:"required"`
	Endpoint       string        `validate:"required,url"`
	SampleRatio    float64       `validate:"gte=0,lte=1"`
	ExportInterval time.Duration `validate:"gt=0"`
}

// LoadOptions adjust which sections are required.
type LoadOptions struct {
	// Memory runs every store in process; no external service is configured.
	Memory bool
}

// Load reads the environment (and a .env file in development), then the
// analysis file, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	if os.Getenv("APP_ENV") == "development" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	env := &envReader{}
	backend := strings.ToLower(getEnvOrDefault("SOURCE_BACKEND", BackendPostgres))
	if opts.Memory {
		backend = BackendMemory
	}

	cfg := &Config{SourceBackend: backend}

	if backend != BackendMemory {
		cfg.Database = DatabaseConfig{
			Host:     env.required("DB_HOST"),
			Port:     env.required("DB_PORT"),
			Name:     env.required("DB_NAME"),
			User:     env.required("POST_SEARCH_DB_USER"),
			Password: env.required("POST_SEARCH_DB_PASSWORD"),
			Timeout:  durationEnv("DB_TIMEOUT", defaultDBTimeout),
			SSL: SSLConfig{
				Mode:     getEnvOrDefault("DB_SSL_MODE", "prefer"),
				RootCert: getEnvOrDefault("DB_SSL_ROOT_CERT", ""),
				Cert:     getEnvOrDefault("DB_SSL_CERT", ""),
				Key:      getEnvOrDefault("DB_SSL_KEY", ""),
			},
		}
		cfg.Meilisearch = MeilisearchConfig{
			Host:    env.required("MEILISEARCH_HOST"),
			APIKey:  getEnvOrDefault("MEILISEARCH_API_KEY", ""),
			Index:   getEnvOrDefault("MEILISEARCH_INDEX", defaultMeiliIndex),
			Timeout: durationEnv("MEILI_TIMEOUT", defaultMeiliTimeout),
		}
		cfg.Redis = RedisConfig{
			URL:       getEnvOrDefault("REDIS_URL", ""),
			KeyPrefix: getEnvOrDefault("REDIS_KEY_PREFIX", "post-search:"),
		}
	}
	if backend == BackendMongo {
		cfg.Mongo = MongoConfig{
			URI:        env.required("MONGO_URI"),
			Database:   getEnvOrDefault("MONGO_DATABASE", "blog"),
			Collection: getEnvOrDefault("MONGO_COLLECTION", "posts"),
		}
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	cfg.Sync = SyncConfig{
		Interval:           durationEnv("SYNC_INTERVAL", defaultSyncInterval),
		BatchSize:          intEnv("SYNC_BATCH_SIZE", defaultSyncBatchSize),
		MaxRetries:         intEnv("SYNC_MAX_RETRIES", defaultSyncMaxRetries),
		RetryInitial:       durationEnv("SYNC_RETRY_INITIAL", defaultSyncRetryInitial),
		PagesPerSecond:     floatEnv("SYNC_PAGES_PER_SECOND", 0),
		LeaseTTL:           durationEnv("SYNC_LEASE_TTL", defaultSyncLeaseTTL),
		PopularityInterval: durationEnv("POPULARITY_INTERVAL", defaultPopularityInterval),
		PopularityWindow:   durationEnv("POPULARITY_WINDOW", defaultPopularityWindow),
	}

	limits := domain.DefaultQueryLimits()
	cfg.Query = QueryConfig{
		DefaultPageSize:     intEnv("QUERY_DEFAULT_PAGE_SIZE", limits.DefaultPageSize),
		MaxPageSize:         intEnv("QUERY_MAX_PAGE_SIZE", limits.MaxPageSize),
		MaxOffset:           intEnv("QUERY_MAX_OFFSET", limits.MaxOffset),
		Timeout:             durationEnv("QUERY_TIMEOUT", defaultQueryTimeout),
		MaxQueryLength:      intEnv("QUERY_MAX_LENGTH", 512),
		DefaultSuggestLimit: intEnv("SUGGEST_DEFAULT_LIMIT", 10),
		MaxSuggestLimit:     intEnv("SUGGEST_MAX_LIMIT", 50),
	}

	cacheDefaults := cache.DefaultConfig().Policies
	cfg.Cache = CacheConfig{
		SearchTTL:     durationEnv("CACHE_SEARCH_TTL", cacheDefaults[domain.ClassSearch].TTL),
		SuggestTTL:    durationEnv("CACHE_SUGGEST_TTL", cacheDefaults[domain.ClassSuggest].TTL),
		PopularTTL:    durationEnv("CACHE_POPULAR_TTL", cacheDefaults[domain.ClassPopular].TTL),
		CategoriesTTL: durationEnv("CACHE_CATEGORIES_TTL", cacheDefaults[domain.ClassCategories].TTL),
		Capacity:      intEnv("CACHE_CAPACITY", cacheDefaults[domain.ClassSearch].Capacity),
		RedisTier:     boolEnv("CACHE_REDIS_TIER", false),
	}

	cfg.HTTP = HTTPConfig{
		Addr:              stringEnv("HTTP_ADDR", defaultHTTPAddr),
		ReadHeaderTimeout: durationEnv("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		RequestTimeout:    durationEnv("HTTP_REQUEST_TIMEOUT", defaultRequestTimeout),
	}

	cfg.Telemetry = TelemetryConfig{
		Enabled:        boolEnv("OTEL_ENABLED", false),
		ServiceName:    stringEnv("OTEL_SERVICE_NAME", defaultServiceName),
		ServiceVersion: stringEnv("SERVICE_VERSION", "0.0.0"),
		Environment:    stringEnv("DEPLOYMENT_ENV", "development"),
		Endpoint:       stringEnv("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
		SampleRatio:    floatEnv("OTEL_TRACE_SAMPLE_RATIO", defaultTraceSampleRatio),
		ExportInterval: durationEnv("OTEL_METRIC_EXPORT_INTERVAL", defaultMetricExportInterval),
	}

	analysis, err := LoadAnalysis(getEnvOrDefault("ANALYSIS_FILE", ""))
	if err != nil {
		return nil, err
	}
	cfg.Analysis = *analysis

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"source_backend", cfg.SourceBackend,
		"db_host", cfg.Database.Host,
		"db_sslmode", cfg.Database.SSL.Mode,
		"meilisearch_host", cfg.Meilisearch.Host,
		"redis", cfg.Redis.URL != "",
		"otel_enabled", cfg.Telemetry.Enabled,
	)
	return cfg, nil
}

// Validate checks field constraints. Sections the chosen backend does not use
// are skipped.
func (c *Config) Validate() error {
	var skip []string
	switch c.SourceBackend {
	case BackendMemory:
		skip = []string{"Database", "Mongo", "Meilisearch", "Redis"}
	case BackendPostgres:
		skip = []string{"Mongo"}
	}
	if !c.Telemetry.Enabled {
		skip = append(skip, "Telemetry")
	}

	v := validator.New()
	if err := v.StructExcept(c, skip...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.SourceBackend != BackendMemory {
		if err := c.Database.ValidateSSLConfig(); err != nil {
			return fmt.Errorf("SSL configuration error: %w", err)
		}
	}
	return nil
}

// QueryLimits returns the pagination bounds for the Query Planner.
func (c *Config) QueryLimits() domain.QueryLimits {
	return domain.QueryLimits{
		DefaultPageSize: c.Query.DefaultPageSize,
		MaxPageSize:     c.Query.MaxPageSize,
		MaxOffset:       c.Query.MaxOffset,
	}
}

// TelemetryConfig returns the provider settings, with the resource named after
// the configured service.
func (c *Config) TelemetryConfig() appOtel.Config {
	t := c.Telemetry
	return appOtel.Config{
		Enabled:        t.Enabled,
		ServiceName:    t.ServiceName,
		ServiceVersion: t.ServiceVersion,
		Environment:    t.Environment,
		Endpoint:       t.Endpoint,
		SampleRatio:    t.SampleRatio,
		ExportInterval: t.ExportInterval,
	}
}

// ResultCacheConfig returns per-class policies for the Result Cache.
func (c *Config) ResultCacheConfig() cache.Config {
	cc := cache.DefaultConfig()
	cc.Policies[domain.ClassSearch] = cache.ClassPolicy{TTL: c.Cache.SearchTTL, Capacity: c.Cache.Capacity}
	cc.Policies[domain.ClassSuggest] = cache.ClassPolicy{TTL: c.Cache.SuggestTTL, Capacity: 2 * c.Cache.Capacity}
	cc.Policies[domain.ClassPopular] = cache.ClassPolicy{TTL: c.Cache.PopularTTL, Capacity: cc.Policies[domain.ClassPopular].Capacity}
	cc.Policies[domain.ClassCategories] = cache.ClassPolicy{TTL: c.Cache.CategoriesTTL, Capacity: cc.Policies[domain.ClassCategories].Capacity}
	cc.StaleCapacity = 2 * c.Cache.Capacity
	return cc
}

// envReader collects every missing required variable so one error lists them all.
type envReader struct {
	missing []string
}

func (r *envReader) required(key string) string {
	v := getEnvOrDefault(key, "")
	if v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *envReader) err() error {
	if len(r.missing) == 0 {
		return nil
	}
	return fmt.Errorf("required environment variables not set: %s", strings.Join(r.missing, ", "))
}

// getEnvOrDefault prefers the contents of KEY_FILE, then KEY, then the default.
func getEnvOrDefault(key, defaultValue string) string {
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
		slog.Warn("failed to read secret file, falling back to env", "key", key, "error", err)
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
