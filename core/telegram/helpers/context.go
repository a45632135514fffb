package helpers

import (
	"context"

	"github.com/m3rciful/quizbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxKey = "quizbot.ctx"

// IDs returns the update, user and chat ids of c. Missing parts are zero.
func IDs(c tele.Context) (updateID int, userID, chatID int64) {
	if c == nil {
		return 0, 0, 0
	}
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}

// BuildContext returns the logging context of the update, creating and
// caching it on first use.
func BuildContext(c tele.Context) context.Context {
	if c == nil {
		return logger.Background()
	}
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	updateID, userID, chatID := IDs(c)
	ctx := logger.WithRID(logger.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(ctxKey, ctx)
	return ctx
}

// update replaces the cached context with fn applied to it.
func update(c tele.Context, fn func(context.Context) context.Context) context.Context {
	ctx := fn(BuildContext(c))
	if c != nil {
		c.Set(ctxKey, ctx)
	}
	return ctx
}

// WithHandler records the handler name on the update context.
func WithHandler(c tele.Context, handler string) context.Context {
	return update(c, func(ctx context.Context) context.Context {
		return logger.WithHandler(ctx, handler)
	})
}

// WithSession records the game session on the update context so the
// handler summary line carries it.
func WithSession(c tele.Context, sessionID, kind string) context.Context {
	return update(c, func(ctx context.Context) context.Context {
		return logger.WithSession(ctx, sessionID, kind)
	})
}
