package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/profile"
)

// Options control the generic bootstrap pipeline.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Redis    coredatabase.RedisConfig

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(coredatabase.Config) error
	ConnectRedis func(context.Context, coredatabase.RedisConfig) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Backend profile.Backend
	DB      *sqlx.DB
	Redis   *redis.Client
}

// Close releases connections opened by Run.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger and the profile backend selected by
// store.driver, connecting and migrating databases as needed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	loc, err := opts.Config.Store.Location()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	res := &Result{}
	switch driver := opts.Config.Store.Driver; driver {
	case coreconfig.StoreFile, "":
		path := opts.Config.Store.Path
		if path == "" {
			path = "user_data.json"
		}
		res.Backend = profile.NewFileBackend(path, loc)

	case coreconfig.StorePostgres, coreconfig.StoreSQLite:
		dbCfg := opts.Database
		dbCfg.Driver = driver
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(dbCfg); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db
		res.Backend = profile.NewSQLBackend(db)

	case coreconfig.StoreRedis:
		connect := opts.ConnectRedis
		if connect == nil {
			connect = coredatabase.ConnectRedis
		}
		client, err := connect(ctx, opts.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = client
		res.Backend = profile.NewRedisBackend(client, opts.Redis.Key, loc)

	case coreconfig.StoreMemory:
		res.Backend = &profile.MemoryBackend{}

	default:
		return nil, fmt.Errorf("bootstrap: unsupported store driver %q", driver)
	}

	logger.Info(ctx, "app", "bootstrap",
		slog.String("driver", opts.Config.Store.Driver),
		slog.String("backend", res.Backend.Name()),
		slog.String("timezone", loc.String()),
	)
	return res, nil
}
