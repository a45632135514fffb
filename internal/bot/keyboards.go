package bot

import (
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/keyboard"
	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/game"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbMenu   = "menu"
	cbCat    = "cat"
	cbDiff   = "diff"
	cbTier   = "tier"
	cbKind   = "kind"
	cbChance = "chance"
	cbPick   = "pick"
	cbHint   = "hint"
	cbSkip   = "skip"
	cbAgain  = "again"
)

// any marks a selector left to chance.
const anyChoice = "any"

// Main menu payloads.
const (
	menuHome   = "home"
	menuQuiz   = "quiz"
	menuSpeed  = "speed"
	menuMixed  = "mixed"
	menuRiddle = "riddle"
	menuWord   = "word"
	menuChance = "chance"
	menuStats  = "stats"
	menuTop    = "top"
)

func btn(text, unique, data string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: unique, Data: data}
}

func homeRow() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{btn("🏠 Меню", cbMenu, menuHome)}
}

func mainMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{btn("❓ Викторина", cbMenu, menuQuiz), btn("⚡ На скорость", cbMenu, menuSpeed)},
		[]keyboard.InlineBtn{btn("🎯 Микс", cbMenu, menuMixed), btn("🧩 Загадка", cbMenu, menuRiddle)},
		[]keyboard.InlineBtn{btn("📝 Слова", cbMenu, menuWord), btn("🎲 Удача", cbMenu, menuChance)},
		[]keyboard.InlineBtn{btn("📊 Статистика", cbMenu, menuStats), btn("🏆 Лидеры", cbMenu, menuTop)},
	)
}

func categoryMenu() *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(content.Categories)+1)
	for _, c := range content.Categories {
		buttons = append(buttons, btn(name(categoryNames, c), cbCat, string(c)))
	}
	buttons = append(buttons, btn("🎲 Любая", cbCat, anyChoice))
	return keyboard.WithRow(keyboard.InlineButtonsNPerRow(buttons, 2), homeRow())
}

func difficultyMenu(category string) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(content.Difficulties)+1)
	for _, d := range content.Difficulties {
		buttons = append(buttons, btn(name(difficultyNames, d), cbDiff, callbacks.Join(category, string(d))))
	}
	buttons = append(buttons, btn("🎲 Любая", cbDiff, callbacks.Join(category, anyChoice)))
	return keyboard.WithRow(keyboard.InlineButtonsNPerRow(buttons, 2), homeRow())
}

func tierMenu() *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(content.Tiers))
	for _, t := range content.Tiers {
		buttons = append(buttons, btn(name(tierNames, t), cbTier, string(t)))
	}
	return keyboard.WithRow(keyboard.InlineButtonsNPerRow(buttons, 2), homeRow())
}

func riddleKindMenu() *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(content.RiddleKinds)+1)
	for _, k := range content.RiddleKinds {
		buttons = append(buttons, btn(name(riddleKindNames, k), cbKind, k))
	}
	buttons = append(buttons, btn("🎲 Любая", cbKind, anyChoice))
	return keyboard.WithRow(keyboard.InlineButtonsNPerRow(buttons, 2), homeRow())
}

func chanceMenu() *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(game.Chances))
	for _, g := range game.Chances {
		buttons = append(buttons, btn(name(chanceNames, g), cbChance, string(g)))
	}
	return keyboard.WithRow(keyboard.InlineButtonsNPerRow(buttons, 2), homeRow())
}

// choiceMenu offers the moves of games that need one, or nil.
func choiceMenu(g game.Chance) *tele.ReplyMarkup {
	var moves []string
	switch g {
	case game.ChanceCoin:
		moves = []string{"heads", "tails"}
	case game.ChanceRPS:
		moves = []string{"rock", "scissors", "paper"}
	default:
		return nil
	}
	buttons := make([]keyboard.InlineBtn, 0, len(moves))
	for _, m := range moves {
		buttons = append(buttons, btn(name(choiceNames, m), cbPick, callbacks.Join(string(g), m)))
	}
	return keyboard.WithRow(keyboard.InlineButtonsRows(buttons), homeRow())
}

// controls is shown under a running game.
func controls(kind game.Kind) *tele.ReplyMarkup {
	switch kind {
	case game.KindWord:
		return keyboard.InlineButtonsRows([]keyboard.InlineBtn{btn("💡 Подсказка", cbHint, ""), btn("🏳 Сдаться", cbSkip, "")})
	case game.KindRiddle:
		return keyboard.InlineButtons([]keyboard.InlineBtn{btn("🏳 Сдаться", cbSkip, "")})
	case game.KindTrivia:
		return keyboard.InlineButtons([]keyboard.InlineBtn{btn("⏭ Пропустить", cbSkip, "")})
	}
	return keyboard.InlineButtons([]keyboard.InlineBtn{btn("🚪 Выйти", cbSkip, "")})
}

// afterGame is shown once a session ends.
func afterGame(kind game.Kind) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{btn("🔁 Ещё раз", cbAgain, string(kind)), btn("🏠 Меню", cbMenu, menuHome)},
	)
}

func chanceAgain(g game.Chance) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{btn("🔁 Ещё раз", cbChance, string(g)), btn("🏠 Меню", cbMenu, menuHome)},
	)
}
