package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/achievement"
	"github.com/m3rciful/quizbot/internal/profile"
)

// Chance is a one-shot luck game resolved without a session.
type Chance string

const (
	ChanceDice       Chance = "dice"
	ChanceCoin       Chance = "coin"
	ChanceRoulette   Chance = "roulette"
	ChanceNumber     Chance = "number"
	ChanceDoubleDice Chance = "double_dice"
	ChanceRPS        Chance = "rps"
)

// Chances lists the luck games in menu order.
var Chances = []Chance{ChanceDice, ChanceCoin, ChanceRoulette, ChanceNumber, ChanceDoubleDice, ChanceRPS}

// Chance results.
const (
	ResultWin   = "win"
	ResultLose  = "lose"
	ResultDraw  = "draw"
	ResultExact = "exact"
	ResultClose = "close"
	ResultNear  = "near"
	ResultMiss  = "miss"
)

var (
	coinSides = []string{"heads", "tails"}
	rpsMoves  = []string{"rock", "scissors", "paper"}
	// beats maps a move to the move it defeats.
	beats = map[string]string{"rock": "scissors", "scissors": "paper", "paper": "rock"}

	choiceAliases = map[string]string{
		"орёл": "heads", "орел": "heads", "решка": "tails",
		"камень": "rock", "ножницы": "scissors", "бумага": "paper",
	}
)

// ChanceResult reports a finished luck game.
type ChanceResult struct {
	Game       Chance
	Player     []int
	Bot        []int
	Choice     string
	BotChoice  string
	Result     string
	Double     bool
	ScoreDelta int64
	Granted    []achievement.Key
}

// Play resolves a luck game and books its score and games_played. An empty
// choice lets the bot pick for the player where the game allows it.
func (r *Registry) Play(ctx context.Context, userID int64, game Chance, choice string) (ChanceResult, error) {
	res, err := r.roll(game, normalizeChoice(choice))
	if err != nil {
		return ChanceResult{}, err
	}
	ctx = logger.WithSession(ctx, "", string(game))
	upd, err := r.store.Update(ctx, userID, profile.Delta{Score: res.ScoreDelta, GamesPlayed: 1})
	if err != nil && !errors.Is(err, profile.ErrPersistence) {
		return res, fmt.Errorf("apply chance result: %w", err)
	}
	res.Granted = upd.Granted
	if r.observer != nil {
		r.observer.ChancePlayed(string(game), res.Result, res.ScoreDelta)
	}
	logger.Info(ctx, "game", "chance",
		slog.String("outcome", res.Result),
		slog.Int64("score_delta", res.ScoreDelta),
	)
	return res, nil
}

func normalizeChoice(choice string) string {
	c := strings.ToLower(strings.TrimSpace(choice))
	if alias, ok := choiceAliases[c]; ok {
		return alias
	}
	return c
}

func (r *Registry) roll(game Chance, choice string) (ChanceResult, error) {
	res := ChanceResult{Game: game, Choice: choice}
	switch game {
	case ChanceDice:
		p, b := r.die(), r.die()
		res.Player, res.Bot = []int{p}, []int{b}
		res.Result, res.ScoreDelta = compare(p, b, 3, -1, 1)

	case ChanceCoin:
		if choice == "" {
			choice = coinSides[r.intn(2)]
		} else if choice != "heads" && choice != "tails" {
			return res, fmt.Errorf("%w: coin side %q", ErrInvalidGuess, choice)
		}
		res.Choice = choice
		res.BotChoice = coinSides[r.intn(2)]
		if res.Choice == res.BotChoice {
			res.Result, res.ScoreDelta = ResultWin, 2
		} else {
			res.Result, res.ScoreDelta = ResultLose, -1
		}

	case ChanceRoulette:
		p, err := r.pickNumber(choice, 0, 36)
		if err != nil {
			return res, err
		}
		w := r.intn(37)
		res.Player, res.Bot = []int{p}, []int{w}
		switch d := abs(p - w); {
		case d == 0:
			res.Result, res.ScoreDelta = ResultExact, 10
		case d <= 2:
			res.Result, res.ScoreDelta = ResultClose, 5
		case d <= 5:
			res.Result, res.ScoreDelta = ResultNear, 2
		default:
			res.Result, res.ScoreDelta = ResultMiss, -1
		}

	case ChanceNumber:
		p, err := r.pickNumber(choice, 1, 10)
		if err != nil {
			return res, err
		}
		secret := 1 + r.intn(10)
		res.Player, res.Bot = []int{p}, []int{secret}
		switch abs(p - secret) {
		case 0:
			res.Result, res.ScoreDelta = ResultExact, 5
		case 1:
			res.Result, res.ScoreDelta = ResultClose, 2
		default:
			res.Result, res.ScoreDelta = ResultMiss, -1
		}

	case ChanceDoubleDice:
		p1, p2, b1, b2 := r.die(), r.die(), r.die(), r.die()
		res.Player, res.Bot = []int{p1, p2}, []int{b1, b2}
		res.Result, res.ScoreDelta = compare(p1+p2, b1+b2, 4, -1, 1)
		if p1 == p2 {
			res.Double = true
			res.ScoreDelta += 2
		}

	case ChanceRPS:
		if _, ok := beats[choice]; !ok {
			return res, fmt.Errorf("%w: move %q", ErrInvalidGuess, choice)
		}
		res.BotChoice = rpsMoves[r.intn(len(rpsMoves))]
		switch {
		case choice == res.BotChoice:
			res.Result, res.ScoreDelta = ResultDraw, 0
		case beats[choice] == res.BotChoice:
			res.Result, res.ScoreDelta = ResultWin, 3
		default:
			res.Result, res.ScoreDelta = ResultLose, -1
		}

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownKind, game)
	}
	return res, nil
}

func (r *Registry) die() int { return 1 + r.intn(6) }

func (r *Registry) pickNumber(choice string, lo, hi int) (int, error) {
	if choice == "" {
		return lo + r.intn(hi-lo+1), nil
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: want a number %d-%d", ErrInvalidGuess, lo, hi)
	}
	return n, nil
}

func compare(player, bot int, win, lose, draw int64) (string, int64) {
	switch {
	case player > bot:
		return ResultWin, win
	case player < bot:
		return ResultLose, lose
	default:
		return ResultDraw, draw
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
