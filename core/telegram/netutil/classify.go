package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Redact hides bot tokens embedded in API URLs.
func Redact(s string) string {
	return tokenRe.ReplaceAllString(s, "bot<redacted>")
}

// ErrorText returns the redacted message of err, or "" for nil.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}

// Classify names the failure class of err for logs: timeout, dial, dns,
// tls, http_4xx, http_5xx or unknown.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var (
		dnsErr   *net.DNSError
		opErr    *net.OpError
		netErr   net.Error
		alertErr tls.AlertError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alertErr):
		return "tls"
	}
	switch code := StatusCode(err); {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// StatusCode extracts the Bot API status of err. Telebot errors carry it
// directly; plain errors ending in "(NNN)" are parsed.
func StatusCode(err error) int {
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
		groupErr tele.GroupError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &floodErr):
		return http.StatusTooManyRequests
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return apiErr.Code
	}
	msg := strings.TrimSpace(err.Error())
	open := strings.LastIndexByte(msg, '(')
	if open < 0 || !strings.HasSuffix(msg, ")") {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil {
		return 0
	}
	return code
}
