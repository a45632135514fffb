package game

import (
	"strings"
	"time"
	"unicode"

	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/profile"
)

const (
	maskRune = '_'
	vowels   = "аеиоуыэюя"
)

// hintWords are the inputs that ask for a hint instead of guessing.
// HintCommand asks the word game for a hint.
const HintCommand = "подсказка"

var hintWords = map[string]bool{"hint": true, "?": true, HintCommand: true}

// tierReward is the base reward for a solved word.
func tierReward(t content.Tier) int64 {
	switch t {
	case content.TierMedium:
		return 10
	case content.TierLong:
		return 15
	case content.TierHard:
		return 20
	default:
		return 5
	}
}

type wordGuess struct {
	secret    []rune
	tier      content.Tier
	guessed   map[rune]bool
	attempts  int
	hintsUsed int
	maxHints  int
}

func newWordGuess(w content.Word, attempts, hints int) *wordGuess {
	return &wordGuess{
		secret:   []rune(content.Normalize(w.Text)),
		tier:     w.Tier,
		guessed:  make(map[rune]bool),
		attempts: attempts,
		maxHints: hints,
	}
}

func (w *wordGuess) mask() string {
	var b strings.Builder
	for _, r := range w.secret {
		if w.guessed[r] {
			b.WriteRune(r)
		} else {
			b.WriteRune(maskRune)
		}
	}
	return b.String()
}

func (w *wordGuess) solved() bool {
	for _, r := range w.secret {
		if !w.guessed[r] {
			return false
		}
	}
	return true
}

func (w *wordGuess) prompt() Prompt {
	return Prompt{
		Mask:         w.mask(),
		Tier:         w.tier,
		Reward:       tierReward(w.tier),
		AttemptsLeft: w.attempts,
		HintsLeft:    w.maxHints - w.hintsUsed,
	}
}

func (w *wordGuess) submit(_ time.Time, input string) (step, error) {
	guess := content.Normalize(input)
	if hintWords[guess] {
		return w.hint(), nil
	}
	runes := []rune(guess)
	if len(runes) == 0 {
		return step{}, ErrInvalidGuess
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && r != '-' {
			return step{}, ErrInvalidGuess
		}
	}
	if len(runes) == 1 {
		if runes[0] == '-' {
			return step{}, ErrInvalidGuess
		}
		return w.letter(runes[0]), nil
	}
	if guess == string(w.secret) {
		return w.win(), nil
	}
	return w.miss(), nil
}

func (w *wordGuess) letter(r rune) step {
	if w.guessed[r] {
		st := w.progress()
		st.outcome.Notice = NoticeRepeatedLetter
		return st
	}
	w.guessed[r] = true
	if !strings.ContainsRune(string(w.secret), r) {
		return w.miss()
	}
	if w.solved() {
		return w.win()
	}
	st := w.progress()
	st.outcome.Correct = true
	return st
}

// hint reveals every vowel of the word. It never costs an attempt.
func (w *wordGuess) hint() step {
	if w.hintsUsed >= w.maxHints {
		st := w.progress()
		st.outcome.Notice = NoticeNoHintsLeft
		return st
	}
	w.hintsUsed++
	revealed := false
	for _, r := range w.secret {
		if strings.ContainsRune(vowels, r) {
			w.guessed[r] = true
			revealed = true
		}
	}
	if !revealed {
		st := w.progress()
		st.outcome.Notice = NoticeNoVowels
		return st
	}
	if w.solved() {
		return w.win()
	}
	return w.progress()
}

func (w *wordGuess) miss() step {
	w.attempts--
	if w.attempts <= 0 {
		w.attempts = 0
		st := step{done: true}
		st.outcome = w.snapshot(StateLost)
		st.outcome.Answer = string(w.secret)
		return st
	}
	return w.progress()
}

func (w *wordGuess) win() step {
	for _, r := range w.secret {
		w.guessed[r] = true
	}
	reward := tierReward(w.tier)
	if w.hintsUsed == 0 {
		reward += reward / 2
	}
	st := step{done: true, delta: profile.Delta{Score: reward, WordsGuessed: 1}}
	st.outcome = w.snapshot(StateWon)
	st.outcome.Correct = true
	st.outcome.ScoreDelta = reward
	st.outcome.Answer = string(w.secret)
	return st
}

func (w *wordGuess) progress() step {
	return step{outcome: w.snapshot(StateGuessing)}
}

func (w *wordGuess) snapshot(state State) Outcome {
	return Outcome{
		State:        state,
		Mask:         w.mask(),
		AttemptsLeft: w.attempts,
		HintsLeft:    w.maxHints - w.hintsUsed,
	}
}

func (w *wordGuess) cancel() step {
	st := step{done: true}
	st.outcome = w.snapshot(StateCancelled)
	st.outcome.Answer = string(w.secret)
	return st
}
