package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the matching environment variable is unset or invalid.
const (
	defaultHTTPAddr           = ":9300"
	defaultSyncInterval       = time.Minute
	defaultSyncBatchSize      = 200
	defaultSyncMaxRetries     = 3
	defaultSyncRetryInitial   = 200 * time.Millisecond
	defaultSyncLeaseTTL       = 5 * time.Minute
	defaultPopularityInterval = 10 * time.Minute
	defaultPopularityWindow   = 7 * 24 * time.Hour
	defaultDBTimeout          = 10 * time.Second
	defaultMeiliTimeout       = 15 * time.Second
	defaultMeiliIndex         = "posts"
	defaultQueryTimeout       = 3 * time.Second
	defaultRequestTimeout     = 10 * time.Second

	defaultServiceName          = "post-search"
	defaultOTLPEndpoint         = "http://localhost:4318"
	defaultTraceSampleRatio     = 0.1
	defaultMetricExportInterval = 15 * time.Second
)

func stringEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func floatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func boolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return defaultVal
}

func durationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
