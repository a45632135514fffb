package router

import (
	"time"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Sessions routes free text to a user's running game.
type Sessions interface {
	InProgress(userID int64) bool
	HandleAnswer(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	Observer    middleware.Observer
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the handler for plain text: an answer to a running game,
// a command typed without the menu, or the fallback.
func TextRoutes(sessions Sessions, reg *tg.Registry, opts TextOptions) []tg.Route {
	sum := summary{obs: opts.Observer}
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly && text != "" && text[0] == '/' {
				return sum.handle(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if sessions != nil && c.Sender() != nil && sessions.InProgress(c.Sender().ID) {
			return sum.handle(c, "answer", start, func() error {
				return sessions.HandleAnswer(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return sum.handle(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return sum.handle(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		sum.log(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
