package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain: panic recovery, the per-user
// rate limit when configured, update logging and message counting. obs and
// onLimited may be nil.
func DefaultMiddlewares(cfg *coreconfig.Config, obs middleware.Observer, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil {
		if limit, ok := rateLimit(cfg.RateLimit, obs, onLimited); ok {
			chain = append(chain, limit)
		}
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(rc coreconfig.RateLimitConfig, obs middleware.Observer, onLimited tele.HandlerFunc) (Middleware, bool) {
	if rc.IntervalMS <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(rc.ExcludeUpdates))
	for _, kind := range rc.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  time.Duration(rc.IntervalMS) * time.Millisecond,
			Exclude:   exclude,
			OnLimited: onLimited,
			Observer:  obs,
		}),
	}, true
}
