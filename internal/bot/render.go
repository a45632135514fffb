package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/internal/achievement"
	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/game"
	"github.com/m3rciful/quizbot/internal/profile"
)

var categoryNames = map[content.Category]string{
	content.CategoryMath:       "🔢 Математика",
	content.CategoryScience:    "🔬 Наука",
	content.CategoryHistory:    "📜 История",
	content.CategoryGeography:  "🌍 География",
	content.CategoryCulture:    "🎭 Культура",
	content.CategorySports:     "⚽ Спорт",
	content.CategoryTechnology: "💻 Технологии",
	content.CategoryNature:     "🌿 Природа",
}

var difficultyNames = map[content.Difficulty]string{
	content.Easy:   "🟢 Лёгкий",
	content.Medium: "🟡 Средний",
	content.Hard:   "🔴 Сложный",
}

var tierNames = map[content.Tier]string{
	content.TierShort:  "Короткие",
	content.TierMedium: "Средние",
	content.TierLong:   "Длинные",
	content.TierHard:   "Сложные",
}

var riddleKindNames = map[string]string{
	"easy":  "😊 Простые",
	"hard":  "🤯 Сложные",
	"funny": "😂 Смешные",
	"logic": "🧠 Логические",
}

var chanceNames = map[game.Chance]string{
	game.ChanceDice:       "🎲 Кости",
	game.ChanceCoin:       "🪙 Монетка",
	game.ChanceRoulette:   "🎡 Рулетка",
	game.ChanceNumber:     "🔢 Угадай число",
	game.ChanceDoubleDice: "🎲🎲 Двойные кости",
	game.ChanceRPS:        "✊ Камень-ножницы-бумага",
}

var choiceNames = map[string]string{
	"heads":    "орёл",
	"tails":    "решка",
	"rock":     "камень",
	"scissors": "ножницы",
	"paper":    "бумага",
}

func name[K comparable](names map[K]string, key K) string {
	if n, ok := names[key]; ok {
		return n
	}
	return fmt.Sprint(key)
}

// points renders a signed score change with the right Russian plural.
func points(n int64) string {
	sign := "+"
	if n < 0 {
		sign = "−"
		n = -n
	}
	return sign + strconv.FormatInt(n, 10) + " " + plural(n, "очко", "очка", "очков")
}

func plural(n int64, one, few, many string) string {
	n %= 100
	if n >= 11 && n <= 14 {
		return many
	}
	switch n % 10 {
	case 1:
		return one
	case 2, 3, 4:
		return few
	}
	return many
}

// spaced renders a word mask with gaps between letters.
func spaced(mask string) string {
	return strings.Join(strings.Split(mask, ""), " ")
}

func renderPrompt(p game.Prompt, now time.Time) string {
	var b strings.Builder
	switch p.Kind {
	case game.KindTrivia:
		fmt.Fprintf(&b, "❓ %s · %s · %s\n\n%s\n\nНапишите ответ в чат.",
			name(categoryNames, p.Category), name(difficultyNames, p.Difficulty), points(p.Reward), p.Text)
	case game.KindSpeedQuiz:
		left := p.Deadline.Sub(now).Round(time.Second)
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(&b, "⚡ Вопрос %d/%d · осталось %d сек.\n\n%s", p.Index, p.Total, int(left.Seconds()), p.Text)
	case game.KindMixedQuiz:
		fmt.Fprintf(&b, "🎯 Вопрос %d/%d · %s · %s · %s\n\n%s", p.Index, p.Total,
			name(categoryNames, p.Category), name(difficultyNames, p.Difficulty), points(p.Reward), p.Text)
	case game.KindWord:
		n := int64(len([]rune(p.Mask)))
		fmt.Fprintf(&b, "📝 Угадай слово (%d %s)\n\n%s\n\nПопыток: %d · подсказок: %d\nНапишите букву или слово целиком. «подсказка» открывает гласные.",
			n, plural(n, "буква", "буквы", "букв"), spaced(p.Mask), p.AttemptsLeft, p.HintsLeft)
	case game.KindRiddle:
		fmt.Fprintf(&b, "🧩 Загадка (%s)\n\n%s\n\nНе знаете ответ? /cancel откроет его за 1 очко.", points(p.Reward), p.Text)
	default:
		b.WriteString(p.Text)
	}
	return b.String()
}

func renderOutcome(out game.Outcome, now time.Time) string {
	var lines []string
	switch out.Kind {
	case game.KindTrivia:
		lines = append(lines, answerLine(out))
	case game.KindSpeedQuiz, game.KindMixedQuiz:
		switch out.State {
		case game.StateExpired:
			lines = append(lines, "⏰ Время вышло!")
		case game.StateCancelled:
			lines = append(lines, "🚪 Викторина прервана.")
		default:
			lines = append(lines, answerLine(out))
		}
		if out.Terminal {
			lines = append(lines, fmt.Sprintf("🏁 Правильных ответов: %d из %d", out.CorrectCount, out.Total))
			if out.State != game.StateCancelled {
				lines = append(lines, fmt.Sprintf("Точность: %.0f%%", out.Accuracy))
			}
		}
	case game.KindWord:
		lines = append(lines, wordLine(out))
	case game.KindRiddle:
		switch {
		case out.Correct:
			lines = append(lines, "✅ Верно! "+points(out.ScoreDelta))
		case out.State == game.StateCancelled:
			lines = append(lines, fmt.Sprintf("Ответ: %s. %s", out.Answer, points(out.ScoreDelta)))
		default:
			lines = append(lines, "❌ Не угадали, попробуйте ещё раз.")
			if out.Hint != "" {
				lines = append(lines, "💡 Подсказка: "+out.Hint)
			}
		}
	}
	if out.StreakChanged && out.Streak > 1 {
		lines = append(lines, fmt.Sprintf("🔥 Серия: %d %s подряд", out.Streak, plural(int64(out.Streak), "день", "дня", "дней")))
	}
	lines = append(lines, grantedLines(out.Granted)...)
	if out.Next != nil {
		lines = append(lines, "", renderPrompt(*out.Next, now))
	}
	return strings.Join(lines, "\n")
}

func answerLine(out game.Outcome) string {
	var s string
	switch {
	case out.State == game.StateCancelled:
		return "🚪 Вопрос пропущен. Ответ: " + out.Answer
	case out.Correct:
		s = "✅ Правильно! " + points(out.ScoreDelta)
	default:
		s = fmt.Sprintf("❌ Неверно. Правильный ответ: %s. %s", out.Answer, points(out.ScoreDelta))
	}
	if out.Explanation != "" {
		s += "\nℹ️ " + out.Explanation
	}
	return s
}

func wordLine(out game.Outcome) string {
	switch out.State {
	case game.StateWon:
		return fmt.Sprintf("🎉 Слово угадано: %s! %s", strings.ToUpper(out.Answer), points(out.ScoreDelta))
	case game.StateLost:
		return fmt.Sprintf("💀 Попытки кончились. Было загадано: %s", strings.ToUpper(out.Answer))
	case game.StateCancelled:
		return "🚪 Игра прервана. Слово: " + strings.ToUpper(out.Answer)
	}
	var head string
	switch out.Notice {
	case game.NoticeRepeatedLetter:
		head = "🔁 Эта буква уже была."
	case game.NoticeNoHintsLeft:
		head = "🚫 Подсказки закончились."
	case game.NoticeNoVowels:
		head = "🤷 В слове нет гласных."
	default:
		if out.Correct {
			head = "✅ Есть такая буква!"
		} else {
			head = "❌ Мимо."
		}
	}
	return fmt.Sprintf("%s\n\n%s\n\nПопыток: %d · подсказок: %d", head, spaced(out.Mask), out.AttemptsLeft, out.HintsLeft)
}

func grantedLines(keys []achievement.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, "🏅 Новое достижение: "+achievement.Title(k))
	}
	return out
}

func renderChance(res game.ChanceResult) string {
	var b strings.Builder
	b.WriteString(name(chanceNames, res.Game) + "\n\n")
	switch res.Game {
	case game.ChanceDice:
		fmt.Fprintf(&b, "Вы: %d · бот: %d", res.Player[0], res.Bot[0])
	case game.ChanceDoubleDice:
		fmt.Fprintf(&b, "Вы: %d+%d · бот: %d+%d", res.Player[0], res.Player[1], res.Bot[0], res.Bot[1])
		if res.Double {
			b.WriteString("\n✨ Дубль! Бонус +2")
		}
	case game.ChanceCoin:
		fmt.Fprintf(&b, "Ваш выбор: %s · выпало: %s", name(choiceNames, res.Choice), name(choiceNames, res.BotChoice))
	case game.ChanceRPS:
		fmt.Fprintf(&b, "Вы: %s · бот: %s", name(choiceNames, res.Choice), name(choiceNames, res.BotChoice))
	case game.ChanceRoulette:
		fmt.Fprintf(&b, "Ставка: %d · выпало: %d", res.Player[0], res.Bot[0])
	case game.ChanceNumber:
		fmt.Fprintf(&b, "Ваше число: %d · загадано: %d", res.Player[0], res.Bot[0])
	}
	b.WriteString("\n\n" + resultTitle(res.Result) + " " + points(res.ScoreDelta))
	for _, l := range grantedLines(res.Granted) {
		b.WriteString("\n" + l)
	}
	return b.String()
}

func resultTitle(result string) string {
	switch result {
	case game.ResultWin:
		return "🏆 Победа!"
	case game.ResultLose:
		return "😞 Поражение."
	case game.ResultDraw:
		return "🤝 Ничья."
	case game.ResultExact:
		return "🎯 В точку!"
	case game.ResultClose:
		return "🔥 Очень близко!"
	case game.ResultNear:
		return "👌 Рядом."
	default:
		return "😞 Мимо."
	}
}

func renderStats(p profile.Profile) string {
	return fmt.Sprintf(`📊 Ваша статистика

⭐ Очки: %d
❓ Ответов: %d · правильных: %d (%.1f%%)
🎮 Игр сыграно: %d
🧩 Загадок разгадано: %d
📝 Слов угадано: %d
🔥 Серия: %d (рекорд %d)
🏅 Достижений: %d из %d`,
		p.Score, p.Answered, p.Correct, p.Accuracy(), p.GamesPlayed,
		p.RiddlesSolved, p.WordsGuessed, p.Streak, p.MaxStreak,
		len(p.Achievements), len(achievement.Catalog()))
}

// displayUser hides most of a user id on public boards.
func displayUser(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) > 4 {
		s = s[:4]
	}
	return "User" + s + "***"
}

func renderLeaderboard(entries []profile.Entry, self int64) string {
	if len(entries) == 0 {
		return "🏆 Таблица лидеров пока пуста. Сыграйте первым!"
	}
	medals := []string{"🥇", "🥈", "🥉"}
	var b strings.Builder
	b.WriteString("🏆 Таблица лидеров\n")
	for _, e := range entries {
		mark := strconv.Itoa(e.Rank) + "."
		if e.Rank <= len(medals) {
			mark = medals[e.Rank-1]
		}
		who := displayUser(e.Profile.UserID)
		if e.Profile.UserID == self {
			who += " (вы)"
		}
		fmt.Fprintf(&b, "\n%s %s · %d", mark, who, e.Profile.Score)
	}
	return b.String()
}

func renderAchievements(p profile.Profile) string {
	var b strings.Builder
	b.WriteString("🏅 Достижения\n")
	for _, d := range achievement.Catalog() {
		mark := "🔒"
		if p.HasAchievement(d.Key) {
			mark = "✅"
		}
		fmt.Fprintf(&b, "\n%s %s", mark, d.Title)
	}
	return b.String()
}

func renderSummary(s profile.Summary, active int) string {
	return fmt.Sprintf(`📈 Сводка

👥 Игроков: %d
⭐ Всего очков: %d
❓ Всего ответов: %d
📊 Средний счёт: %.2f
🎮 Активных игр: %d`, s.TotalUsers, s.TotalScore, s.TotalAnswers, s.AverageScore, active)
}

// userMessage maps domain errors to a reply. Unknown errors get a generic
// apology and are logged by the caller.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, game.ErrSessionBusy):
		return "⏳ Предыдущий ответ ещё обрабатывается.", true
	case errors.Is(err, game.ErrNoActiveSession):
		return "Сейчас нет активной игры. Выберите игру в /start.", true
	case errors.Is(err, game.ErrSessionAlreadyActive):
		return "У вас уже идёт игра. Ответьте на вопрос или завершите её командой /cancel.", true
	case errors.Is(err, game.ErrInvalidGuess):
		return "🤔 Не понял ответ. Попробуйте ещё раз.", true
	case errors.Is(err, game.ErrUnknownKind):
		return "Такой игры нет.", true
	case errors.Is(err, content.ErrContentUnavailable):
		return "😔 Не нашлось подходящих вопросов, попробуйте позже.", true
	}
	return "⚠️ Что-то пошло не так. Попробуйте ещё раз.", false
}
