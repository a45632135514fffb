package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type metaKey struct{}

// meta is the request metadata carried through a context as one value.
type meta struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
	session  string
	game     string
	log      *slog.Logger
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, fn func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	fn(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithLogger stores log in ctx for use by LogEvent.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.log = log })
}

// FromContext returns the logger stored in ctx, or the base logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l := metaFrom(ctx).log; l != nil {
		return l
	}
	return L
}

// WithRID attaches the correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// RIDFrom returns the correlation id, if any.
func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithUpdateMeta attaches Telegram update identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID, m.userID, m.chatID = updateID, userID, chatID
	})
}

// UpdateIDFrom returns the Telegram update id.
func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

// UserIDFrom returns the Telegram user id.
func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

// ChatIDFrom returns the Telegram chat id.
func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// HandlerFrom returns the handler name.
func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }

// WithSession tags the context with a game session id and kind. Empty
// values leave the current ones in place.
func WithSession(ctx context.Context, sessionID, kind string) context.Context {
	return withMeta(ctx, func(m *meta) {
		if sessionID != "" {
			m.session = sessionID
		}
		if kind != "" {
			m.game = kind
		}
	})
}

// SessionIDFrom returns the game session id.
func SessionIDFrom(ctx context.Context) string { return metaFrom(ctx).session }

// GameFrom returns the game kind.
func GameFrom(ctx context.Context) string { return metaFrom(ctx).game }

// contextFields lists the metadata of ctx as log fields.
func contextFields(ctx context.Context) []field {
	m := metaFrom(ctx)
	var out []field
	add := func(key string, val any, zero bool) {
		if !zero {
			out = append(out, field{key, val})
		}
	}
	add("rid", m.rid, m.rid == "")
	add("update_id", int64(m.updateID), m.updateID == 0)
	add("user_id", m.userID, m.userID == 0)
	add("chat_id", m.chatID, m.chatID == 0)
	add("handler", m.handler, m.handler == "")
	add("session_id", m.session, m.session == "")
	add("game", m.game, m.game == "")
	return out
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// BuildRID returns a correlation id of the form update:chat:user.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a BuildRID value as dot-separated base36 segments.
// Anything else is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
