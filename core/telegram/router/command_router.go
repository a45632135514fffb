package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Admin    middleware.AdminOptions
	Observer middleware.Observer
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	sum := summary{obs: opts.Observer}
	cmds := reg.Commands()

	routes := make([]tg.Route, 0, len(cmds))
	for cmd, def := range cmds {
		name := normalizeHandlerName(cmd)
		inner := def.Handler
		if def.AdminOnly {
			inner = middleware.AdminOnlyMiddleware(opts.Admin)(inner)
		}
		h := func(c tele.Context) error {
			return sum.handle(c, name, time.Now(), func() error { return inner(c) })
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.Info(logger.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
