// Package app assembles the quiz bot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/quizbot/core/bootstrap"
	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/middleware"
	"github.com/m3rciful/quizbot/core/telegram/router"
	"github.com/m3rciful/quizbot/internal/bot"
	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/game"
	"github.com/m3rciful/quizbot/internal/metrics"
	"github.com/m3rciful/quizbot/internal/profile"

	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v4"
)

// App owns every long-lived component of a running bot.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	metricsServer *metrics.Server

	store    *profile.Store
	games    *game.Registry
	bot      *bot.Bot
	commands *tg.Registry

	stopJanitor context.CancelFunc
}

// Deps overrides infrastructure, mainly for tests.
type Deps struct {
	Bootstrap bootstrap.Options
}

// Bootstrap connects storage, loads content and wires the game engine to
// the Telegram handlers.
func Bootstrap(ctx context.Context, cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	bopts := deps.Bootstrap
	bopts.Config = &cfg.Config
	bopts.Database = cfg.Database
	bopts.Redis = cfg.Redis

	infra, err := bootstrap.Run(ctx, bopts)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra, registry: metrics.NewRegistry()}
	if err := a.wire(ctx); err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	m, err := metrics.New(a.registry)
	if err != nil {
		return fmt.Errorf("app: metrics: %w", err)
	}
	a.metrics = m
	if a.cfg.Metrics.Listen != "" {
		a.metricsServer = metrics.NewServer(a.cfg.Metrics.Listen, a.cfg.Metrics.Endpoint, a.registry)
	}

	loc, err := a.cfg.Store.Location()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.store, err = profile.Open(ctx, profile.Options{
		Backend:  a.infra.Backend,
		Location: loc,
		Observer: m,
	})
	if err != nil {
		return err
	}

	bank, err := content.Load(a.cfg.Content.Path, nil)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	a.games, err = game.NewRegistry(game.Options{
		Store:    a.store,
		Content:  bank,
		Config:   a.cfg.GameSettings(),
		Observer: m,
	})
	if err != nil {
		return err
	}

	a.bot, err = bot.New(bot.Options{Profiles: a.store, Games: a.games})
	if err != nil {
		return err
	}
	a.commands = tg.NewRegistry()
	if err := a.bot.Register(a.commands); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}

	q, r, w := bank.Stats()
	logger.Info(ctx, "app", "wired",
		slog.String("backend", a.infra.Backend.Name()),
		slog.Int("questions", q),
		slog.Int("riddles", r),
		slog.Int("words", w),
		slog.Int("admins", len(a.cfg.AdminIDs)),
		slog.Bool("metrics", a.metricsServer != nil),
	)
	return nil
}

// Store exposes the profile store.
func (a *App) Store() *profile.Store { return a.store }

// Games exposes the session engine.
func (a *App) Games() *game.Registry { return a.games }

// TelegramRunOptions builds the middleware chain, the routes and the
// lifecycle hooks for the Telegram runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.bot == nil {
		return tg.RunOptions{}, errors.New("app: not bootstrapped")
	}
	onLimited := func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Не так быстро 🙂"})
		}
		return nil
	}

	var routes []tg.Route
	routes = append(routes, router.CommandRoutes(a.commands, router.CommandRouteOptions{
		Admin: middleware.AdminOptions{
			AdminIDs: a.cfg.AdminIDs,
			OnReject: func(c tele.Context) error { return helpers.SendText(c, "⛔ Команда доступна только администраторам.") },
		},
		Observer: a.metrics,
	})...)
	routes = append(routes, router.TextRoutes(a.bot, a.commands, router.TextOptions{Observer: a.metrics})...)
	routes = append(routes, router.CallbackRoute(a.commands, router.CallbackOptions{Observer: a.metrics}))

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.commands,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, a.metrics, onLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopJanitor = cancel
	go a.games.RunJanitor(jctx, a.cfg.JanitorInterval())

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("app: metrics server: %w", err)
		}
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	return a.Close(ctx)
}

// Close flushes pending profile writes and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		if err := a.store.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.infra.Close())
	err := errors.Join(errs...)
	if err != nil {
		logger.Error(ctx, "app", "close", slog.String("status", "fail"), slog.String("err", err.Error()))
	}
	return err
}
