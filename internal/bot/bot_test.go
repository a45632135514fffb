package bot

import (
	"context"
	"slices"
	"testing"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/internal/game"
	"github.com/m3rciful/quizbot/internal/profile"
)

type stubProfiles struct{}

func (stubProfiles) Ensure(context.Context, int64) profile.Profile { return profile.Profile{} }
func (stubProfiles) ApplyDelta(context.Context, int64, profile.Field, int64) (profile.Result, error) {
	return profile.Result{}, nil
}
func (stubProfiles) ResetUser(context.Context, int64) (profile.Profile, error) {
	return profile.Profile{}, nil
}
func (stubProfiles) Leaderboard(int) []profile.Entry { return nil }
func (stubProfiles) Summary() profile.Summary        { return profile.Summary{} }

type stubGames struct {
	active map[int64]game.Kind
}

func (g stubGames) Start(context.Context, int64, game.Kind, game.Selector) (game.Prompt, error) {
	return game.Prompt{}, nil
}
func (g stubGames) Submit(context.Context, int64, string) (game.Outcome, error) {
	return game.Outcome{}, nil
}
func (g stubGames) Cancel(context.Context, int64) (game.Outcome, error) {
	return game.Outcome{}, game.ErrNoActiveSession
}
func (g stubGames) Active(uid int64) (game.Kind, bool) {
	k, ok := g.active[uid]
	return k, ok
}
func (g stubGames) Current(int64) (game.Prompt, bool) { return game.Prompt{}, false }
func (g stubGames) Play(context.Context, int64, game.Chance, string) (game.ChanceResult, error) {
	return game.ChanceResult{}, nil
}
func (g stubGames) Len() int { return len(g.active) }

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	b, err := New(Options{Profiles: stubProfiles{}, Games: stubGames{active: map[int64]game.Kind{7: game.KindRiddle}}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return b
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{Profiles: stubProfiles{}}); err == nil {
		t.Fatalf("expected error without games")
	}
}

func TestRegisterWiresCommandsAndCallbacks(t *testing.T) {
	b := newTestBot(t)
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	cmds := reg.Commands()
	for _, name := range []string{"/start", "/quiz", "/word", "/play", "/cancel", "/top", "/grant", "/summary"} {
		if _, ok := cmds[name]; !ok {
			t.Fatalf("command %s not registered", name)
		}
	}
	if !cmds["/grant"].AdminOnly || cmds["/stats"].AdminOnly {
		t.Fatalf("admin flags wrong")
	}
	if key, _, ok := reg.LookupCommand("/stop"); !ok || key != "/cancel" {
		t.Fatalf("alias: %q %v", key, ok)
	}
	for _, cmd := range reg.ListCommands(true) {
		if cmd.Text == "grant" || cmd.Text == "reset" {
			t.Fatalf("admin command %q visible in menu", cmd.Text)
		}
	}

	keys := reg.ListCallbacks()
	for _, k := range []string{cbMenu, cbCat, cbDiff, cbHint, cbSkip, cbPick} {
		if !slices.Contains(keys, k) {
			t.Fatalf("callback %s missing in %v", k, keys)
		}
	}
	if reg.TextFallback() == nil {
		t.Fatalf("text fallback not set")
	}
	if err := b.Register(reg); err == nil {
		t.Fatalf("second register should report duplicate callbacks")
	}
}

func TestInProgress(t *testing.T) {
	b := newTestBot(t)
	if !b.InProgress(7) || b.InProgress(8) {
		t.Fatalf("in progress mismatch")
	}
}

// Buttons keep unique and payload apart; telebot joins them on send.
func TestKeyboardPayloads(t *testing.T) {
	m := difficultyMenu("math")
	first := m.InlineKeyboard[0][0]
	if first.Unique != cbDiff || first.Data != "math|easy" {
		t.Fatalf("difficulty button %q %q", first.Unique, first.Data)
	}
	last := m.InlineKeyboard[len(m.InlineKeyboard)-1]
	if len(last) != 1 || last[0].Unique != cbMenu || last[0].Data != menuHome {
		t.Fatalf("home row %+v", last)
	}

	if choiceMenu(game.ChanceDice) != nil {
		t.Fatalf("dice needs no choice")
	}
	rps := choiceMenu(game.ChanceRPS)
	if len(rps.InlineKeyboard[0]) != 3 || rps.InlineKeyboard[0][0].Data != "rps|rock" {
		t.Fatalf("rps menu %+v", rps.InlineKeyboard)
	}

	if hint := controls(game.KindWord).InlineKeyboard[0][0]; hint.Unique != cbHint || hint.Data != "" {
		t.Fatalf("hint button %+v", hint)
	}
	if again := afterGame(game.KindRiddle).InlineKeyboard[0][0]; again.Data != string(game.KindRiddle) {
		t.Fatalf("again data %q", again.Data)
	}
}
