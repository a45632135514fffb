package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

func TestChanceGamesFollowScoringRules(t *testing.T) {
	f := newFixture(t, &fixedContent{}, Config{})
	ctx := context.Background()

	var played int64
	var total int64
	for i := 0; i < 40; i++ {
		for _, g := range Chances {
			choice := ""
			if g == ChanceRPS {
				choice = rpsMoves[i%3]
			}
			res, err := f.reg.Play(ctx, 1, g, choice)
			if err != nil {
				t.Fatalf("%s: %v", g, err)
			}
			checkChance(t, res)
			played++
			total += res.ScoreDelta
		}
	}
	p := f.profile(t, 1)
	if p.GamesPlayed != played || p.Score != total {
		t.Fatalf("profile %+v, want games %d score %d", p, played, total)
	}
}

func checkChance(t *testing.T, res ChanceResult) {
	t.Helper()
	switch res.Game {
	case ChanceDice:
		want := map[string]int64{ResultWin: 3, ResultLose: -1, ResultDraw: 1}[res.Result]
		if res.ScoreDelta != want || !sameOrder(res.Player[0], res.Bot[0], res.Result) {
			t.Fatalf("dice: %+v", res)
		}
	case ChanceCoin:
		if (res.Choice == res.BotChoice) != (res.ScoreDelta == 2) {
			t.Fatalf("coin: %+v", res)
		}
	case ChanceRoulette:
		d := abs(res.Player[0] - res.Bot[0])
		var want int64 = -1
		switch {
		case d == 0:
			want = 10
		case d <= 2:
			want = 5
		case d <= 5:
			want = 2
		}
		if res.ScoreDelta != want || res.Bot[0] < 0 || res.Bot[0] > 36 {
			t.Fatalf("roulette: %+v", res)
		}
	case ChanceNumber:
		d := abs(res.Player[0] - res.Bot[0])
		want := map[int]int64{0: 5, 1: 2}[d]
		if d > 1 {
			want = -1
		}
		if res.ScoreDelta != want || res.Bot[0] < 1 || res.Bot[0] > 10 {
			t.Fatalf("number: %+v", res)
		}
	case ChanceDoubleDice:
		sumP, sumB := res.Player[0]+res.Player[1], res.Bot[0]+res.Bot[1]
		want := map[string]int64{ResultWin: 4, ResultLose: -1, ResultDraw: 1}[res.Result]
		if res.Player[0] == res.Player[1] {
			want += 2
		}
		if res.ScoreDelta != want || !sameOrder(sumP, sumB, res.Result) || res.Double != (res.Player[0] == res.Player[1]) {
			t.Fatalf("double dice: %+v", res)
		}
	case ChanceRPS:
		want := map[string]int64{ResultWin: 3, ResultLose: -1, ResultDraw: 0}[res.Result]
		if res.ScoreDelta != want {
			t.Fatalf("rps: %+v", res)
		}
		if (res.Result == ResultDraw) != (res.Choice == res.BotChoice) {
			t.Fatalf("rps draw: %+v", res)
		}
		if res.Result == ResultWin && beats[res.Choice] != res.BotChoice {
			t.Fatalf("rps win: %+v", res)
		}
	}
}

func sameOrder(p, b int, result string) bool {
	switch {
	case p > b:
		return result == ResultWin
	case p < b:
		return result == ResultLose
	default:
		return result == ResultDraw
	}
}

func TestChanceIsDeterministicForSeed(t *testing.T) {
	play := func() []ChanceResult {
		f := newFixture(t, &fixedContent{}, Config{})
		f.reg.rnd = rand.New(rand.NewSource(42))
		var out []ChanceResult
		for _, g := range []Chance{ChanceDice, ChanceRoulette, ChanceDoubleDice, ChanceCoin} {
			res, err := f.reg.Play(context.Background(), 1, g, "")
			if err != nil {
				t.Fatalf("%s: %v", g, err)
			}
			out = append(out, res)
		}
		return out
	}
	a, b := play(), play()
	for i := range a {
		if a[i].Result != b[i].Result || a[i].ScoreDelta != b[i].ScoreDelta || a[i].BotChoice != b[i].BotChoice {
			t.Fatalf("run %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestChanceChoices(t *testing.T) {
	f := newFixture(t, &fixedContent{}, Config{})
	ctx := context.Background()

	res, err := f.reg.Play(ctx, 1, ChanceNumber, " 7 ")
	if err != nil || res.Player[0] != 7 {
		t.Fatalf("number choice: %+v %v", res, err)
	}
	res, err = f.reg.Play(ctx, 1, ChanceCoin, "Решка")
	if err != nil || res.Choice != "tails" {
		t.Fatalf("coin alias: %+v %v", res, err)
	}
	res, err = f.reg.Play(ctx, 1, ChanceRPS, "камень")
	if err != nil || res.Choice != "rock" {
		t.Fatalf("rps alias: %+v %v", res, err)
	}

	bad := []struct {
		game   Chance
		choice string
	}{
		{ChanceNumber, "11"},
		{ChanceNumber, "x"},
		{ChanceRoulette, "37"},
		{ChanceCoin, "edge"},
		{ChanceRPS, ""},
		{ChanceRPS, "lizard"},
	}
	for _, c := range bad {
		if _, err := f.reg.Play(ctx, 2, c.game, c.choice); !errors.Is(err, ErrInvalidGuess) {
			t.Fatalf("%s %q: expected ErrInvalidGuess, got %v", c.game, c.choice, err)
		}
	}
	if _, err := f.reg.Play(ctx, 2, Chance("slots"), ""); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if len(f.obs.chances) != 3 || f.obs.chances[2] != "rps:"+res.Result {
		t.Fatalf("observer saw %v", f.obs.chances)
	}
	if _, ok := f.store.Get(2); ok {
		t.Fatal("rejected plays must not touch the profile")
	}
}
