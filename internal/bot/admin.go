package bot

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/internal/profile"

	tele "gopkg.in/telebot.v4"
)

// onGrant adds points to a user: /grant <user_id> <points>.
func (b *Bot) onGrant(c tele.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return helpers.SendText(c, "Использование: /grant <user_id> <очки>")
	}
	uid, err1 := strconv.ParseInt(args[0], 10, 64)
	amount, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil {
		return helpers.SendText(c, "user_id и очки должны быть числами.")
	}
	ctx := helpers.BuildContext(c)
	res, err := b.profiles.ApplyDelta(ctx, uid, profile.FieldScore, amount)
	if err != nil {
		logger.Error(ctx, "store", "admin.grant",
			slog.Int64("target", uid),
			slog.Int64("amount", amount),
			slog.String("err", err.Error()),
		)
		return helpers.SendText(c, "⚠️ Не удалось сохранить изменение.")
	}
	logger.Info(ctx, "store", "admin.grant",
		slog.Int64("target", uid),
		slog.Int64("amount", amount),
		slog.Int64("score", res.Profile.Score),
	)
	text := fmt.Sprintf("✅ Пользователю %d: %s. Теперь очков: %d", uid, points(amount), res.Profile.Score)
	for _, l := range grantedLines(res.Granted) {
		text += "\n" + l
	}
	return helpers.SendText(c, text)
}

// onReset clears a user's progress: /reset <user_id>.
func (b *Bot) onReset(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return helpers.SendText(c, "Использование: /reset <user_id>")
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return helpers.SendText(c, "user_id должен быть числом.")
	}
	ctx := helpers.BuildContext(c)
	if _, err := b.profiles.ResetUser(ctx, uid); err != nil {
		logger.Error(ctx, "store", "admin.reset", slog.Int64("target", uid), slog.String("err", err.Error()))
		return helpers.SendText(c, "⚠️ Не удалось сохранить изменение.")
	}
	logger.Info(ctx, "store", "admin.reset", slog.Int64("target", uid))
	return helpers.SendText(c, fmt.Sprintf("🧹 Профиль %d сброшен.", uid))
}

func (b *Bot) onSummary(c tele.Context) error {
	return helpers.SendText(c, renderSummary(b.profiles.Summary(), b.games.Len()))
}
