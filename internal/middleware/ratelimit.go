package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/benvon/smart-tutor/internal/database"
)

const (
	defaultRatelimitRate = "10-S"
	redisPingTimeout     = 5 * time.Second
	limiterKeyPrefix     = "smart-tutor:limiter"
)

// DefaultRates is the rate used per route group until one is configured.
var DefaultRates = map[string]string{
	database.RatelimitKeyDefault: defaultRatelimitRate,
	database.RatelimitKeyAuth:    "20-M",
	database.RatelimitKeyAsk:     "30-M",
}

// ConnectRedis opens the Redis client backing shared rate limit counters
// and verifies it answers a ping.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewLimiterStore returns a Redis-backed limiter store, or a process-local
// one when client is nil. The local store does not share counts between
// replicas.
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterKeyPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: limiterKeyPrefix})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

// ValidateRate reports whether s is a limiter rate such as "5-S" or "100-M".
func ValidateRate(s string) error {
	if _, err := limiter.NewRateFromFormatted(s); err != nil {
		return fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return nil
}
