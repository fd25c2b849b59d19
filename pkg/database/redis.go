package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yourusername/complaint-tracker/internal/config"
)

const redisPingTimeout = 5 * time.Second

// NewUniversalRedisClient connects to Redis in single, sentinel or cluster
// mode and pings it. Sessions, pending OAuth states and rate limit counters
// all live there.
func NewUniversalRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	opts, err := universalOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("redis configuration error: %w", err)
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach Redis at %v: %w", opts.Addrs, err)
	}
	return client, nil
}

func universalOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no address configured (set addr or addrs)")
	}

	opts := &redis.UniversalOptions{
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoff) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoff) * time.Millisecond,
	}

	switch cfg.Mode {
	case "", "single":
		// a single address keeps NewUniversalClient off the cluster client
		opts.Addrs = addrs[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("sentinel mode needs master_name")
		}
		opts.Addrs = addrs
		opts.MasterName = cfg.MasterName
	case "cluster":
		opts.Addrs = addrs
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	return opts, nil
}
