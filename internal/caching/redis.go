package caching

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient accepts either host:port or a redis:// / rediss:// address.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed on startup", "addr", parsedAddr, "error", err)
	} else {
		logger.Debug("redis connection established", "addr", parsedAddr)
	}
	return client
}
