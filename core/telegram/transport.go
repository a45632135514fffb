package telegram

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 500 * time.Millisecond
)

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a Telebot poller based on provided options.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}

	timeoutSec := opts.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Transient dial and timeout failures are retried with backoff.
func BuildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: defaultResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout: defaultClientTimeout,
		Transport: &retryTransport{
			base: transport,
			policy: netutil.Policy{
				MaxRetries: defaultRetryAttempts,
				Initial:    defaultRetryBackoff,
				MaxElapsed: defaultClientTimeout,
			},
		},
	}
}

type retryTransport struct {
	base   http.RoundTripper
	policy netutil.Policy
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	policy := t.policy
	if req.Body != nil && req.GetBody == nil {
		// The body cannot be replayed.
		policy.MaxRetries = 0
	}

	var resp *http.Response
	first := true
	_, err := netutil.Do(req.Context(), policy, func() error {
		curr := req
		if !first {
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return err
				}
				curr.Body = body
			}
		}
		first = false
		r, err := base.RoundTrip(curr)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.Debug(req.Context(), "tg", "http.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait),
			slog.String("err", netutil.ErrorText(err)),
		)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
