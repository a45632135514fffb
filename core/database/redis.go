package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/quizbot/core/logger"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Key      string `yaml:"key" envconfig:"REDIS_KEY"`
	// MaxRetries bounds the startup ping loop; 0 -> 5.
	MaxRetries int `yaml:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
}

// ConnectRedis returns a client that answered a ping, retrying with
// exponential backoff.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	start := time.Now()
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "db", "redis.connect.retry",
				slog.String("host", cfg.Addr),
				slog.Int("attempts", attempts),
				slog.String("err", err.Error()),
			)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx))
	if err != nil {
		_ = client.Close()
		logger.Error(ctx, "db", "redis.connect",
			slog.String("status", "fail"),
			slog.String("host", cfg.Addr),
			slog.Int("attempts", attempts),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	logger.Info(ctx, "db", "redis.connect",
		slog.String("status", "ok"),
		slog.String("host", cfg.Addr),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return client, nil
}
