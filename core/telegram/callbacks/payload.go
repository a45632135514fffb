// Package callbacks reads the payload of routed inline button presses.
package callbacks

import (
	"strconv"
	"strings"

	"github.com/m3rciful/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Sep joins the parts of a compound payload.
const Sep = "|"

// Payload returns the data part of the callback. Routed callbacks carry the
// bare payload; raw ones are decoded from telebot's encoding.
func Payload(c tele.Context) string {
	_, payload := middleware.ParseCallback(c.Callback())
	return payload
}

// Join builds a compound payload.
func Join(parts ...string) string {
	return strings.Join(parts, Sep)
}

// PayloadParts splits the payload into exactly n parts.
func PayloadParts(c tele.Context, n int) ([]string, error) {
	p := Payload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.SplitN(p, Sep, n)
	if len(parts) != n {
		return nil, strconv.ErrSyntax
	}
	return parts, nil
}

// PayloadInt64 parses the payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(Payload(c), 10, 64)
}
