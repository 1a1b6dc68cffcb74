package driver

import (
	"context"
	"sync"
	"time"

	"post-search/domain"
	"post-search/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLease is a SET NX lock with a random owner token. It is renewed every
// third of its TTL while held; a crashed holder loses it when the TTL elapses.
type RedisLease struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLease(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLease {
	return &RedisLease{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context, name string) (func(), error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, newDriverError("AcquireLease", err)
	}
	if !ok {
		return nil, domain.ErrSyncInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				err := renewScript.Run(context.Background(), l.client, []string{key}, token, l.ttl.Milliseconds()).Err()
				if err != nil {
					logger.Logger.Warn("failed to renew lease", "lease", key, "error", err)
				}
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil {
				logger.Logger.Warn("failed to release lease", "lease", key, "error", err)
			}
		})
	}
	return release, nil
}

// MemoryLease is the single-process lease used without Redis.
type MemoryLease struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{held: make(map[string]bool)}
}

func (l *MemoryLease) Acquire(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, domain.ErrSyncInProgress
	}
	l.held[name] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, nil
}
