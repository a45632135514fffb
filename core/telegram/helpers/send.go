package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends plain text to the current chat with an optional reply markup.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if len(markup) > 0 && markup[0] != nil {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// EditOrSend replaces the message behind a callback, or sends a new one
// when the update is not a callback.
func EditOrSend(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if len(markup) > 0 && markup[0] != nil {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "send.edit", "editMessageText", func() error {
		return c.EditOrSend(text, opts)
	})
}
