// Package game keeps at most one in-progress game per user and drives each
// game's state machine. Every transition that earns or costs points is
// applied to the profile store as a single batch update.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/quizbot/internal/achievement"
	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/profile"
)

var (
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionAlreadyActive = errors.New("session already active")
	// ErrSessionBusy is a duplicate submit racing one still in flight.
	ErrSessionBusy  error = &busyError{}
	ErrInvalidGuess       = errors.New("invalid guess")
	ErrUnknownKind        = errors.New("unknown game kind")
)

type busyError struct{}

func (*busyError) Error() string { return "session busy" }

// Is makes a busy session read as no session to callers that only check
// ErrNoActiveSession.
func (*busyError) Is(target error) bool { return target == ErrNoActiveSession }

type Kind string

const (
	KindTrivia    Kind = "trivia-single"
	KindSpeedQuiz Kind = "trivia-timed-batch"
	KindMixedQuiz Kind = "trivia-mixed-batch"
	KindWord      Kind = "word-guess"
	KindRiddle    Kind = "riddle"
)

// Kinds lists every session kind.
var Kinds = []Kind{KindTrivia, KindSpeedQuiz, KindMixedQuiz, KindWord, KindRiddle}

// State names the position of a session in its state machine.
type State string

const (
	StateAwaiting   State = "awaiting"
	StateInProgress State = "in-progress"
	StateGuessing   State = "guessing"
	StateResolved   State = "resolved"
	StateCompleted  State = "completed"
	StateExpired    State = "expired"
	StateWon        State = "won"
	StateLost       State = "lost"
	StateCancelled  State = "cancelled"
)

// Notice is an informational result that leaves the session unchanged or
// explains why nothing was charged.
type Notice string

const (
	NoticeRepeatedLetter Notice = "repeated-letter"
	NoticeNoHintsLeft    Notice = "no-hints-left"
	NoticeNoVowels       Notice = "no-vowels"
	NoticeTryAgain       Notice = "try-again"
)

// Selector narrows the content a new session is built from. Zero fields
// mean any.
type Selector struct {
	Category   content.Category
	Difficulty content.Difficulty
	Tier       content.Tier
	RiddleKind string
}

// Prompt is what the player has to answer next.
type Prompt struct {
	SessionID string
	Kind      Kind
	Text      string

	Category   content.Category
	Difficulty content.Difficulty
	Reward     int64

	// batch quizzes
	Index    int
	Total    int
	Deadline time.Time

	// word guess
	Mask         string
	Tier         content.Tier
	AttemptsLeft int
	HintsLeft    int
}

// Outcome describes the effect of one submit or cancel.
type Outcome struct {
	SessionID  string
	Kind       Kind
	State      State
	Terminal   bool
	Correct    bool
	ScoreDelta int64
	Notice     Notice

	// Answer is revealed when the puzzle ends unsolved.
	Answer      string
	Explanation string
	Hint        string

	Mask         string
	AttemptsLeft int
	HintsLeft    int

	CorrectCount int
	Total        int
	Accuracy     float64
	Next         *Prompt

	Granted       []achievement.Key
	Streak        int
	StreakChanged bool
}

// ProfileStore is the slice of the profile store games write to.
type ProfileStore interface {
	Update(ctx context.Context, userID int64, d profile.Delta) (profile.Result, error)
}

// ContentSource supplies puzzles. It is called without registry locks
// held and must be safe for concurrent use.
type ContentSource interface {
	Question(category content.Category, difficulty content.Difficulty) (content.Question, error)
	Riddle(kind string) (content.Riddle, error)
	Word(tier content.Tier) (content.Word, error)
}

// Observer receives game lifecycle events, typically for metrics.
type Observer interface {
	GameStarted(kind string)
	GameFinished(kind, state string, scoreDelta int64)
	ChancePlayed(game, result string, scoreDelta int64)
}

// step is the result of a transition inside one session.
type step struct {
	outcome Outcome
	delta   profile.Delta
	done    bool
}

// machine is the per-kind state carried by a session.
type machine interface {
	prompt() Prompt
	submit(now time.Time, input string) (step, error)
	cancel() step
}
