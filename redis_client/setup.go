package redis_client

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"github.com/leeforge/bot/env_mode"
	"go.uber.org/zap"
)

// NewRedis connects and pings. The connection is logged in development mode.
func NewRedis(ctx context.Context, cnf Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cnf.Addr(),
		Password: cnf.Password,
		DB:       cnf.DB,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cnf.Addr(), err)
	}
	if logger != nil && env_mode.Mode() == env_mode.DevMode {
		logger.Info("redis connected", zap.String("pong", pong), zap.String("config", redisConfigLogFields(cnf)))
	}
	return client, nil
}

func redisConfigLogFields(cnf Config) string {
	return fmt.Sprintf("addr=%s db=%d password=%s", cnf.Addr(), cnf.DB, redactedPassword(cnf.Password))
}

func redactedPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}
