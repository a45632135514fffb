package middleware

import (
	"log/slog"
	"strings"

	"github.com/m3rciful/quizbot/core/logger"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const receivedKey = "quizbot.received"

// LoggerMiddleware prepares the update context and writes one sampled
// update.received line. Nested use logs the update once.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if seen, _ := c.Get(receivedKey).(bool); seen || !logger.ShouldSampleDebug() {
			return next(c)
		}
		c.Set(receivedKey, true)

		kind, attrs := describeUpdate(c)
		attrs = append([]slog.Attr{slog.String("status", "ok"), slog.String("kind", kind)}, attrs...)
		if ch := c.Chat(); ch != nil {
			attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
		}
		if u := c.Sender(); u != nil && u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}

// describeUpdate names the update kind and its payload. Answers are not
// logged in full since they may be guesses to an open riddle.
func describeUpdate(c tele.Context) (string, []slog.Attr) {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := ParseCallback(upd.Callback)
		return "callback", []slog.Attr{
			slog.String("cb_key", logger.SanitizeLimit(key, 64)),
			slog.String("payload", logger.SanitizeLimit(payload, 128)),
		}
	case upd.Message != nil:
		text := c.Text()
		if strings.HasPrefix(text, "/") {
			cmd, _, _ := strings.Cut(text, " ")
			return "command", []slog.Attr{slog.String("command", logger.SanitizeLimit(cmd, 64))}
		}
		return "text", []slog.Attr{slog.Int("text_len", len([]rune(text)))}
	}
	return "other", nil
}

// ParseCallback returns the unique key and payload of cb. Raw data of the
// form "\funique|payload" is split when telebot has not done it already.
func ParseCallback(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}
