package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/netutil"
	tgsender "github.com/m3rciful/quizbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

const stopTimeout = 10 * time.Second

// RunTelegram builds the bot, installs middlewares and routes, and polls
// until ctx is done. OnStop always runs once OnStart succeeded.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, opts.Config, !opts.DisableWebhookCleanup)
	if err != nil {
		return err
	}
	disp := opts.Dispatcher
	if disp == nil {
		disp = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(disp)
		defer tghelpers.SetDispatcher(nil)
	}
	defer disp.Close()

	install(bot, opts)
	rt := Runtime{Bot: bot, Dispatcher: disp, Registry: opts.Registry}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, bot)
	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := opts.OnStop(stopCtx, rt); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func newBot(ctx context.Context, cfg *coreconfig.Config, cleanup bool) (*tele.Bot, error) {
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	took := slog.Duration("duration", logger.RoundMS(time.Since(start)))

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			took,
		)
	case *tele.LongPoller:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", RunModeLongpoll),
			slog.Duration("timeout", p.Timeout),
			took,
		)
		// A leftover webhook makes getUpdates fail with 409.
		if cleanup {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.Warn(ctx, "tg", "delete_webhook",
					slog.String("status", "fail"),
					slog.String("err", netutil.ErrorText(err)),
					slog.String("error_kind", netutil.Classify(err)),
				)
			} else {
				logger.Info(ctx, "tg", "delete_webhook", slog.String("status", "ok"))
			}
		}
	}
	return bot, nil
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, opts.Registry)
}

// serve polls until ctx is done or the poller exits on its own.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}
