package db

import (
	"context"
	"time"

	"backend-fieldroute/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when no address is configured; callers treat a
// nil client as "no cache, local fan-out only".
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DialTimeout: 5 * time.Second,
	})
}

func RedisStatus(ctx context.Context, client *redis.Client) Status {
	if client == nil {
		return StatusDisabled
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return StatusDown
	}
	return StatusUp
}
