package middleware

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// Observer receives per-update handler measurements.
type Observer interface {
	ObserveUpdate(handler string, took time.Duration, messages int, err error)
	RateLimited()
}

const countersKey = "quizbot.counters"

// counters tracks what a handler sent while serving one update.
type counters struct {
	messages int
	keyboard bool
}

// countingContext counts successful outgoing messages of the wrapped context.
type countingContext struct {
	tele.Context
	n *counters
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.n.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			c.n.keyboard = c.n.keyboard || v != nil
		case *tele.SendOptions:
			c.n.keyboard = c.n.keyboard || (v != nil && v.ReplyMarkup != nil)
		}
	}
	return nil
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the messages a handler sends and whether
// any carried a keyboard. Read the result with GetCounters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &counters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the message count and keyboard flag for the update.
func GetCounters(c tele.Context) (int, bool) {
	if n, ok := c.Get(countersKey).(*counters); ok {
		return n.messages, n.keyboard
	}
	return 0, false
}
