package router

import (
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary writes the handler.handled line and feeds the observer.
type summary struct {
	obs middleware.Observer
}

func (s summary) handle(c tele.Context, name string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	s.log(c, name, start, "", "", err, extras...)
	return err
}

// log records one handled update. Empty status and outcome derive from err.
func (s summary) log(c tele.Context, name string, start time.Time, status, outcome string, err error, extras ...slog.Attr) {
	took := time.Since(start)
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := middleware.GetCounters(c)
	if s.obs != nil {
		s.obs.ObserveUpdate(name, took, msgs, err)
	}

	result := "ok"
	if err != nil {
		result = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", cmp(status, result)),
		slog.String("outcome", cmp(outcome, result)),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", append(attrs, extras...)...)
}

func cmp(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// normalizeHandlerName turns "/Quiz Hard" into "quiz_hard".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an explicit Code() and falls back to the
// error's type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := err.(interface{ Code() string }); ok {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
