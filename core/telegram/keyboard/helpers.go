// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtons builds an inline keyboard where each provided button is placed on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, it behaves like InlineButtons (one per row).
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(Chunk(buttons, n)...)
}

// WithRow appends extra rows below an existing inline keyboard.
func WithRow(markup *tele.ReplyMarkup, rows ...[]InlineBtn) *tele.ReplyMarkup {
	extra := InlineButtonsRows(rows...)
	markup.InlineKeyboard = append(markup.InlineKeyboard, extra.InlineKeyboard...)
	return markup
}

// Chunk splits a flat list into rows with up to n items per row.
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		rows = append(rows, items[i:min(i+n, len(items))])
	}
	return rows
}
