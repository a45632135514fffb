package logger

import (
	"log/slog"
	"strings"
	"time"
)

// field is one key/value pair of a log line.
type field struct {
	key string
	val any
}

// defaultKeyOrder puts the correlation keys first, then the game and store
// keys, then errors. Unlisted keys follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "handler",
	"session_id", "game", "state", "outcome", "op",
	"duration_ms", "score_delta", "score", "field", "amount",
	"granted", "streak", "key", "backend", "driver", "count",
	"mode", "listen", "endpoint", "attempt", "attempts",
	"err", "err_code", "error_kind", "cause", "reason",
}

// enumKeys hold lowercase tokens; values are trimmed and lowercased so
// dashboards can group on them.
var enumKeys = []string{"status", "outcome", "state", "game", "driver", "backend"}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// msKey renames duration keys so the unit is explicit.
func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// RoundMS rounds d to the millisecond; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins up to limit values and reports whether any were cut.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
