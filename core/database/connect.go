package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/quizbot/core/logger"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

func connectTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// Connect opens the database, retrying with exponential backoff until it
// answers a ping or the connect timeout elapses.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver := cfg.driver()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = connectTimeout(cfg.ConnectTimeoutSeconds)

	start := time.Now()
	attempts := 0
	var db *sqlx.DB
	err := backoff.Retry(func() error {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		conn, err := sqlx.ConnectContext(pingCtx, driver, cfg.DSN())
		if err != nil {
			logger.Warn(ctx, "db", "db.connect.retry",
				slog.String("driver", driver),
				slog.Int("attempts", attempts),
				slog.String("err", err.Error()),
			)
			return err
		}
		db = conn
		return nil
	}, backoff.WithContext(policy, ctx))
	took := time.Since(start)
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			slog.String("status", "fail"),
			slog.String("driver", driver),
			slog.String("host", cfg.Host),
			slog.String("db", cfg.Name),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if driver == DriverSQLite {
		// sqlite allows a single writer
		pool = 1
	}
	if pool > 0 {
		db.SetMaxOpenConns(pool)
		db.SetMaxIdleConns(pool)
	}

	logger.Info(ctx, "db", "db.connect",
		slog.String("status", "ok"),
		slog.String("driver", driver),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", pool),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return db, nil
}
