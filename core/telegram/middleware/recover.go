package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
// The panic is reported to the handler chain as an error.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				attrs := []slog.Attr{slog.Any("err", r)}
				if logger.StacksEnabled() {
					attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				}
				logger.Error(tghelpers.BuildContext(c), "tg", "panic", attrs...)
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return next(c)
	}
}
