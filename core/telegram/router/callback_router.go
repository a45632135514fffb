package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	Observer middleware.Observer
	// NotFound answers stale buttons when the registry has no fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches inline button presses by their unique key. The
// handler sees the bare payload in Callback().Data. Every press is answered
// so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	sum := summary{obs: opts.Observer}
	dispatch := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		start := time.Now()
		key, payload := middleware.ParseCallback(cb)
		name := "callback." + normalizeHandlerName(key)
		attrs := []slog.Attr{slog.String("cb_key", key)}

		if h, ok := reg.GetCallback(key); ok && h != nil {
			cb.Unique, cb.Data = key, payload
			_ = c.Respond()
			return sum.handle(c, name, start, func() error { return h(c) }, attrs...)
		}

		stale := reg.CallbackNotFound()
		if stale == nil {
			stale = opts.NotFound
		}
		if stale == nil {
			stale = func(c tele.Context) error { return c.Respond() }
		}
		return sum.handle(c, name, start, func() error { return stale(c) },
			append(attrs, slog.String("reason", "not_found"))...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(dispatch)),
	}
}
