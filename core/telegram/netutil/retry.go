package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ShouldRetry reports whether a network error is worth retrying.
// It focuses on transient dial/timeout failures produced by net/http
// while contacting the Telegram API.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return ShouldRetry(urlErr.Err)
		}
	}

	return false
}

// Policy describes a bounded linear-ish retry schedule.
type Policy struct {
	MaxRetries int
	Initial    time.Duration
	MaxElapsed time.Duration
}

// BackOff builds the cenkalti schedule for p bound to ctx.
func (p Policy) BackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		exp.InitialInterval = p.Initial
	}
	exp.MaxElapsedTime = p.MaxElapsed
	var b backoff.BackOff = exp
	if p.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// policy gives up. notify is called before each wait.
func Do(ctx context.Context, p Policy, fn func() error, notify func(attempt int, err error, wait time.Duration)) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		err := fn()
		if err != nil && !ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) { notify(attempts, err, wait) }
	}
	err := backoff.RetryNotify(op, p.BackOff(ctx), n)
	return attempts, err
}
