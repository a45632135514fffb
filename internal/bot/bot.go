// Package bot is the Telegram front end of the game engine.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/game"
	"github.com/m3rciful/quizbot/internal/profile"

	tele "gopkg.in/telebot.v4"
)

// LeaderboardSize is how many rows /top shows.
const LeaderboardSize = 10

// Profiles is the part of the profile store the bot reads and administers.
type Profiles interface {
	Ensure(ctx context.Context, userID int64) profile.Profile
	ApplyDelta(ctx context.Context, userID int64, field profile.Field, amount int64) (profile.Result, error)
	ResetUser(ctx context.Context, userID int64) (profile.Profile, error)
	Leaderboard(limit int) []profile.Entry
	Summary() profile.Summary
}

// Games is the session engine.
type Games interface {
	Start(ctx context.Context, userID int64, kind game.Kind, sel game.Selector) (game.Prompt, error)
	Submit(ctx context.Context, userID int64, input string) (game.Outcome, error)
	Cancel(ctx context.Context, userID int64) (game.Outcome, error)
	Active(userID int64) (game.Kind, bool)
	Current(userID int64) (game.Prompt, bool)
	Play(ctx context.Context, userID int64, g game.Chance, choice string) (game.ChanceResult, error)
	Len() int
}

// Options wires a Bot.
type Options struct {
	Profiles Profiles
	Games    Games
	Now      func() time.Time
}

// Bot renders games and profiles into chat messages.
type Bot struct {
	profiles Profiles
	games    Games
	now      func() time.Time
}

// New returns a Bot over the given store and engine.
func New(opts Options) (*Bot, error) {
	if opts.Profiles == nil || opts.Games == nil {
		return nil, errors.New("bot: profiles and games are required")
	}
	b := &Bot{profiles: opts.Profiles, games: opts.Games, now: opts.Now}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// Register adds every command and button handler to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	commands := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Handler: b.onStart, Description: "Главное меню"}},
		{"/help", tg.Command{Handler: b.onHelp, Description: "Как играть"}},
		{"/quiz", tg.Command{Handler: b.onQuiz, Description: "Вопрос викторины"}},
		{"/speed", tg.Command{Handler: b.onSpeed, Description: "Викторина на скорость"}},
		{"/mixed", tg.Command{Handler: b.onMixed, Description: "Вопросы из всех категорий"}},
		{"/riddle", tg.Command{Handler: b.onRiddle, Description: "Загадка"}},
		{"/word", tg.Command{Handler: b.onWord, Description: "Угадай слово"}},
		{"/play", tg.Command{Handler: b.onPlay, Description: "Игры на удачу"}},
		{"/cancel", tg.Command{Handler: b.onCancel, Description: "Завершить текущую игру", Aliases: []string{"/stop"}}},
		{"/stats", tg.Command{Handler: b.onStats, Description: "Моя статистика"}},
		{"/top", tg.Command{Handler: b.onTop, Description: "Таблица лидеров"}},
		{"/achievements", tg.Command{Handler: b.onAchievements, Description: "Мои достижения"}},
		{"/grant", tg.Command{Handler: b.onGrant, Description: "Начислить очки", AdminOnly: true}},
		{"/reset", tg.Command{Handler: b.onReset, Description: "Сбросить профиль", AdminOnly: true}},
		{"/summary", tg.Command{Handler: b.onSummary, Description: "Сводка по боту", AdminOnly: true}},
	}
	for _, p := range commands {
		reg.RegisterCommand(p.name, p.cmd)
	}

	cbs := map[string]tele.HandlerFunc{
		cbMenu:   b.onMenu,
		cbCat:    b.onCategory,
		cbDiff:   b.onDifficulty,
		cbTier:   b.onTier,
		cbKind:   b.onRiddleKind,
		cbChance: b.onChance,
		cbPick:   b.onPick,
		cbHint:   b.onHint,
		cbSkip:   b.onCancel,
		cbAgain:  b.onAgain,
	}
	var errs []error
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			errs = append(errs, err)
		}
	}
	reg.SetTextFallback(b.onText)
	return errors.Join(errs...)
}

// InProgress reports whether free text from userID is an answer.
func (b *Bot) InProgress(userID int64) bool {
	_, ok := b.games.Active(userID)
	return ok
}

// HandleAnswer submits the message text to the user's running game.
func (b *Bot) HandleAnswer(c tele.Context) error {
	return b.submit(c, c.Text())
}

func (b *Bot) submit(c tele.Context, input string) error {
	ctx := helpers.BuildContext(c)
	out, err := b.games.Submit(ctx, c.Sender().ID, input)
	if err != nil {
		return b.fail(c, ctx, "submit", err)
	}
	helpers.WithSession(c, out.SessionID, string(out.Kind))
	return helpers.SendText(c, renderOutcome(out, b.now()), b.outcomeMarkup(out))
}

func (b *Bot) outcomeMarkup(out game.Outcome) *tele.ReplyMarkup {
	if out.Terminal {
		return afterGame(out.Kind)
	}
	return controls(out.Kind)
}

func (b *Bot) start(c tele.Context, kind game.Kind, sel game.Selector) error {
	ctx := helpers.BuildContext(c)
	uid := c.Sender().ID
	p, err := b.games.Start(ctx, uid, kind, sel)
	if err != nil {
		if errors.Is(err, game.ErrSessionAlreadyActive) {
			if cur, ok := b.games.Current(uid); ok {
				msg, _ := userMessage(err)
				return helpers.SendText(c, msg+"\n\n"+renderPrompt(cur, b.now()), controls(cur.Kind))
			}
		}
		return b.fail(c, ctx, "start", err)
	}
	helpers.WithSession(c, p.SessionID, string(kind))
	return helpers.SendText(c, renderPrompt(p, b.now()), controls(kind))
}

// fail replies with a readable message. Unexpected errors are logged here
// and not propagated, the user has already been answered.
func (b *Bot) fail(c tele.Context, ctx context.Context, op string, err error) error {
	msg, known := userMessage(err)
	if !known {
		logger.Error(ctx, "game", op+".fail", slog.String("err", err.Error()))
	}
	return helpers.SendText(c, msg)
}

func (b *Bot) onStart(c tele.Context) error {
	b.profiles.Ensure(helpers.BuildContext(c), c.Sender().ID)
	text := "👋 Привет! Я бот с викторинами, загадками и играми на удачу.\n\n" +
		"За правильные ответы начисляются очки, а за регулярную игру растёт серия дней. Выберите игру:"
	return helpers.EditOrSend(c, text, mainMenu())
}

func (b *Bot) onHelp(c tele.Context) error {
	return helpers.SendText(c, helpText)
}

const helpText = `ℹ️ Как играть

/quiz [категория] [сложность] — один вопрос
/speed — 5 вопросов на время
/mixed — вопросы из разных категорий
/riddle [тип] — загадка
/word [уровень] — угадай слово по буквам
/play [игра] [выбор] — игры на удачу
/cancel — завершить текущую игру

/stats — статистика
/top — лидеры
/achievements — достижения

Пока идёт игра, просто пишите ответ в чат.`

func (b *Bot) onQuiz(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return helpers.SendText(c, "Выберите категорию:", categoryMenu())
	}
	var sel game.Selector
	cat, ok := parseCategory(args[0])
	if !ok {
		return helpers.SendText(c, "Не знаю такой категории. Выберите из списка:", categoryMenu())
	}
	sel.Category = cat
	if len(args) > 1 {
		diff, ok := parseDifficulty(args[1])
		if !ok {
			return helpers.SendText(c, "Не знаю такой сложности:", difficultyMenu(string(cat)))
		}
		sel.Difficulty = diff
	}
	return b.start(c, game.KindTrivia, sel)
}

func (b *Bot) onSpeed(c tele.Context) error {
	return b.start(c, game.KindSpeedQuiz, game.Selector{})
}

func (b *Bot) onMixed(c tele.Context) error {
	return b.start(c, game.KindMixedQuiz, game.Selector{})
}

func (b *Bot) onRiddle(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return b.start(c, game.KindRiddle, game.Selector{})
	}
	kind, ok := parseRiddleKind(args[0])
	if !ok {
		return helpers.SendText(c, "Выберите тип загадки:", riddleKindMenu())
	}
	return b.start(c, game.KindRiddle, game.Selector{RiddleKind: kind})
}

func (b *Bot) onWord(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return helpers.SendText(c, "Выберите уровень:", tierMenu())
	}
	tier, ok := parseTier(args[0])
	if !ok {
		return helpers.SendText(c, "Не знаю такого уровня:", tierMenu())
	}
	return b.start(c, game.KindWord, game.Selector{Tier: tier})
}

func (b *Bot) onPlay(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return helpers.SendText(c, "Выберите игру:", chanceMenu())
	}
	g, ok := parseChance(args[0])
	if !ok {
		return helpers.SendText(c, "Такой игры нет. Выберите из списка:", chanceMenu())
	}
	choice := ""
	if len(args) > 1 {
		choice = args[1]
	} else if m := choiceMenu(g); m != nil {
		return helpers.SendText(c, "Ваш выбор?", m)
	}
	return b.play(c, g, choice)
}

func (b *Bot) play(c tele.Context, g game.Chance, choice string) error {
	ctx := helpers.BuildContext(c)
	res, err := b.games.Play(ctx, c.Sender().ID, g, choice)
	if err != nil {
		return b.fail(c, ctx, "play", err)
	}
	return helpers.SendText(c, renderChance(res), chanceAgain(g))
}

func (b *Bot) onCancel(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	out, err := b.games.Cancel(ctx, c.Sender().ID)
	if err != nil {
		return b.fail(c, ctx, "cancel", err)
	}
	return helpers.SendText(c, renderOutcome(out, b.now()), afterGame(out.Kind))
}

func (b *Bot) onStats(c tele.Context) error {
	p := b.profiles.Ensure(helpers.BuildContext(c), c.Sender().ID)
	return helpers.SendText(c, renderStats(p))
}

func (b *Bot) onTop(c tele.Context) error {
	return helpers.SendText(c, renderLeaderboard(b.profiles.Leaderboard(LeaderboardSize), c.Sender().ID))
}

func (b *Bot) onAchievements(c tele.Context) error {
	p := b.profiles.Ensure(helpers.BuildContext(c), c.Sender().ID)
	return helpers.SendText(c, renderAchievements(p))
}

// onText answers free text outside a game.
func (b *Bot) onText(c tele.Context) error {
	return helpers.SendText(c, "Сейчас нет активной игры. Выберите, во что сыграть:", mainMenu())
}

func (b *Bot) onMenu(c tele.Context) error {
	switch callbacks.Payload(c) {
	case menuQuiz:
		return helpers.EditOrSend(c, "Выберите категорию:", categoryMenu())
	case menuSpeed:
		return b.onSpeed(c)
	case menuMixed:
		return b.onMixed(c)
	case menuRiddle:
		return helpers.EditOrSend(c, "Выберите тип загадки:", riddleKindMenu())
	case menuWord:
		return helpers.EditOrSend(c, "Выберите уровень:", tierMenu())
	case menuChance:
		return helpers.EditOrSend(c, "Выберите игру:", chanceMenu())
	case menuStats:
		return b.onStats(c)
	case menuTop:
		return b.onTop(c)
	}
	return helpers.EditOrSend(c, "Выберите игру:", mainMenu())
}

func (b *Bot) onCategory(c tele.Context) error {
	cat := callbacks.Payload(c)
	if _, ok := parseCategory(cat); !ok {
		cat = anyChoice
	}
	return helpers.EditOrSend(c, "Выберите сложность:", difficultyMenu(cat))
}

func (b *Bot) onDifficulty(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, 2)
	if err != nil {
		return helpers.EditOrSend(c, "Выберите категорию:", categoryMenu())
	}
	var sel game.Selector
	if cat, ok := parseCategory(parts[0]); ok {
		sel.Category = cat
	}
	if diff, ok := parseDifficulty(parts[1]); ok {
		sel.Difficulty = diff
	}
	return b.start(c, game.KindTrivia, sel)
}

func (b *Bot) onTier(c tele.Context) error {
	tier, _ := parseTier(callbacks.Payload(c))
	return b.start(c, game.KindWord, game.Selector{Tier: tier})
}

func (b *Bot) onRiddleKind(c tele.Context) error {
	kind, _ := parseRiddleKind(callbacks.Payload(c))
	return b.start(c, game.KindRiddle, game.Selector{RiddleKind: kind})
}

func (b *Bot) onChance(c tele.Context) error {
	g, ok := parseChance(callbacks.Payload(c))
	if !ok {
		return helpers.EditOrSend(c, "Выберите игру:", chanceMenu())
	}
	if m := choiceMenu(g); m != nil {
		return helpers.EditOrSend(c, "Ваш выбор?", m)
	}
	return b.play(c, g, "")
}

func (b *Bot) onPick(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, 2)
	if err != nil {
		return helpers.EditOrSend(c, "Выберите игру:", chanceMenu())
	}
	g, ok := parseChance(parts[0])
	if !ok {
		return helpers.EditOrSend(c, "Выберите игру:", chanceMenu())
	}
	return b.play(c, g, parts[1])
}

func (b *Bot) onHint(c tele.Context) error {
	return b.submit(c, game.HintCommand)
}

func (b *Bot) onAgain(c tele.Context) error {
	switch kind := game.Kind(callbacks.Payload(c)); kind {
	case game.KindTrivia:
		return helpers.EditOrSend(c, "Выберите категорию:", categoryMenu())
	case game.KindWord:
		return helpers.EditOrSend(c, "Выберите уровень:", tierMenu())
	case game.KindSpeedQuiz, game.KindMixedQuiz, game.KindRiddle:
		return b.start(c, kind, game.Selector{})
	}
	return helpers.EditOrSend(c, "Выберите игру:", mainMenu())
}

// lookup resolves user input against keys and the words of their display names.
func lookup[K ~string](input string, keys []K, names map[K]string) (K, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" || in == anyChoice {
		return "", false
	}
	for _, k := range keys {
		if string(k) == in {
			return k, true
		}
		for _, w := range strings.Fields(strings.ToLower(names[k])) {
			if w == in {
				return k, true
			}
		}
	}
	return "", false
}

func parseCategory(s string) (content.Category, bool) {
	return lookup(s, content.Categories, categoryNames)
}

func parseDifficulty(s string) (content.Difficulty, bool) {
	return lookup(s, content.Difficulties, difficultyNames)
}

func parseTier(s string) (content.Tier, bool) {
	return lookup(s, content.Tiers, tierNames)
}

func parseRiddleKind(s string) (string, bool) {
	return lookup(s, content.RiddleKinds, riddleKindNames)
}

func parseChance(s string) (game.Chance, bool) {
	return lookup(s, game.Chances, chanceNames)
}
