package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// AppendLogLines pushes platform log lines onto the recent-logs list and
// trims it to the retention cap consumed by the diagnostic log search.
func (r *Redis) AppendLogLines(ctx context.Context, lines ...string) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	if len(lines) == 0 {
		return nil
	}
	values := make([]interface{}, len(lines))
	for i, line := range lines {
		values[i] = line
	}
	pipe := r.Client.Pipeline()
	pipe.LPush(ctx, "logs:recent", values...)
	pipe.LTrim(ctx, "logs:recent", 0, 999)
	_, err := pipe.Exec(ctx)
	return err
}
