// Package profile keeps the durable per-user score records.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/m3rciful/quizbot/internal/achievement"
)

var (
	// ErrInvalidField is returned when a delta targets a field that is not a counter.
	ErrInvalidField = errors.New("profile: invalid field")
	// ErrInvariant is returned when a mutation would break a profile invariant.
	ErrInvariant = errors.New("profile: invariant violated")
	// ErrUnknownAchievement is returned for keys outside the catalog.
	ErrUnknownAchievement = errors.New("profile: unknown achievement")
	// ErrPersistence marks a failed durable write. The in-memory state is kept.
	ErrPersistence = errors.New("profile: persistence failure")
)

// DateLayout is the calendar date format used for streak bookkeeping.
const DateLayout = "2006-01-02"

// Field names a numeric counter that ApplyDelta may change.
type Field string

const (
	FieldScore         Field = "score"
	FieldAnswered      Field = "answered"
	FieldCorrect       Field = "correct"
	FieldGamesPlayed   Field = "games_played"
	FieldRiddlesSolved Field = "riddles_solved"
	FieldWordsGuessed  Field = "words_guessed"
)

// ParseField resolves a field name. Streak counters are not deltas and are rejected.
func ParseField(name string) (Field, error) {
	switch f := Field(name); f {
	case FieldScore, FieldAnswered, FieldCorrect, FieldGamesPlayed, FieldRiddlesSolved, FieldWordsGuessed:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidField, name)
}

// Profile is the persisted record for one user.
type Profile struct {
	UserID         int64             `json:"-"`
	Seq            int64             `json:"seq" validate:"gte=0"`
	Score          int64             `json:"score"`
	Answered       int64             `json:"answered" validate:"gte=0"`
	Correct        int64             `json:"correct" validate:"gte=0,ltefield=Answered"`
	GamesPlayed    int64             `json:"games_played" validate:"gte=0"`
	RiddlesSolved  int64             `json:"riddles_solved" validate:"gte=0"`
	WordsGuessed   int64             `json:"words_guessed" validate:"gte=0"`
	Streak         int               `json:"streak" validate:"gte=0,ltefield=MaxStreak"`
	MaxStreak      int               `json:"max_streak" validate:"gte=0"`
	LastActiveDate string            `json:"last_active_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Achievements   []achievement.Key `json:"achievements" validate:"dive,achievement"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivity   time.Time         `json:"last_activity"`
}

// Stats projects the fields the achievement evaluator reads.
func (p Profile) Stats() achievement.Stats {
	return achievement.Stats{
		Score:         p.Score,
		Correct:       p.Correct,
		Streak:        p.Streak,
		RiddlesSolved: p.RiddlesSolved,
		WordsGuessed:  p.WordsGuessed,
	}
}

// HasAchievement reports whether key was granted.
func (p Profile) HasAchievement(key achievement.Key) bool {
	return slices.Contains(p.Achievements, key)
}

// Accuracy returns correct/answered as a percentage.
func (p Profile) Accuracy() float64 {
	if p.Answered == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Answered) * 100
}

func (p *Profile) clone() Profile {
	c := *p
	c.Achievements = slices.Clone(p.Achievements)
	return c
}

func (p *Profile) counter(f Field) *int64 {
	switch f {
	case FieldScore:
		return &p.Score
	case FieldAnswered:
		return &p.Answered
	case FieldCorrect:
		return &p.Correct
	case FieldGamesPlayed:
		return &p.GamesPlayed
	case FieldRiddlesSolved:
		return &p.RiddlesSolved
	case FieldWordsGuessed:
		return &p.WordsGuessed
	}
	return nil
}

func (p *Profile) checkInvariants() error {
	switch {
	case p.Answered < 0, p.Correct < 0, p.GamesPlayed < 0, p.RiddlesSolved < 0, p.WordsGuessed < 0:
		return fmt.Errorf("%w: negative counter", ErrInvariant)
	case p.Correct > p.Answered:
		return fmt.Errorf("%w: correct %d exceeds answered %d", ErrInvariant, p.Correct, p.Answered)
	case p.Streak < 0 || p.Streak > p.MaxStreak:
		return fmt.Errorf("%w: streak %d outside [0, %d]", ErrInvariant, p.Streak, p.MaxStreak)
	}
	return nil
}

// Delta is a batch of counter changes applied in one critical section.
type Delta struct {
	Score         int64
	Answered      int64
	Correct       int64
	GamesPlayed   int64
	RiddlesSolved int64
	WordsGuessed  int64
	// TouchStreak records streak-qualifying activity for today.
	TouchStreak bool
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

func (d Delta) apply(p *Profile) {
	p.Score += d.Score
	p.Answered += d.Answered
	p.Correct += d.Correct
	p.GamesPlayed += d.GamesPlayed
	p.RiddlesSolved += d.RiddlesSolved
	p.WordsGuessed += d.WordsGuessed
}

// Result reports the effect of a mutation.
type Result struct {
	Profile       Profile
	Granted       []achievement.Key
	Streak        int
	StreakChanged bool
}

// Entry is one leaderboard row.
type Entry struct {
	Rank    int
	Profile Profile
}

// Summary aggregates the whole store.
type Summary struct {
	TotalUsers   int
	TotalScore   int64
	TotalAnswers int64
	AverageScore float64
}
