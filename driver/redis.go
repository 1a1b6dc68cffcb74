package driver

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, &DriverError{Op: "NewRedisClient", Err: "invalid redis URL: " + err.Error()}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &DriverError{Op: "NewRedisClient", Err: err.Error(), Unavailable: true}
	}
	return client, nil
}
