package game

import (
	"time"

	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/profile"
)

const (
	riddleReward      = 3
	riddleSkipPenalty = -1
)

// riddleGame stays open on a wrong answer; giving up costs a point.
type riddleGame struct {
	r content.Riddle
}

func (g *riddleGame) prompt() Prompt {
	return Prompt{Text: g.r.Text, Reward: riddleReward}
}

func (g *riddleGame) submit(_ time.Time, input string) (step, error) {
	if content.Normalize(input) == "" {
		return step{}, ErrInvalidGuess
	}
	if content.Matches(g.r.Answers, input) {
		return step{
			done:  true,
			delta: profile.Delta{Score: riddleReward, RiddlesSolved: 1, TouchStreak: true},
			outcome: Outcome{
				State:      StateResolved,
				Correct:    true,
				ScoreDelta: riddleReward,
			},
		}, nil
	}
	return step{outcome: Outcome{
		State:  StateAwaiting,
		Notice: NoticeTryAgain,
		Hint:   g.r.Hint,
	}}, nil
}

func (g *riddleGame) cancel() step {
	return step{
		done:  true,
		delta: profile.Delta{Score: riddleSkipPenalty},
		outcome: Outcome{
			State:      StateCancelled,
			ScoreDelta: riddleSkipPenalty,
			Answer:     firstAnswer(g.r.Answers),
			Hint:       g.r.Hint,
		},
	}
}
