// Package content serves read-only quiz material: questions, riddles and
// words for the guessing game.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/quizbot/core/logger"
)

// ErrContentUnavailable is returned when nothing matches even without filters.
var ErrContentUnavailable = errors.New("content unavailable")

//go:embed default.yaml
var defaultBank []byte

type Category string

const (
	CategoryMath       Category = "math"
	CategoryScience    Category = "science"
	CategoryHistory    Category = "history"
	CategoryGeography  Category = "geography"
	CategoryCulture    Category = "culture"
	CategorySports     Category = "sports"
	CategoryTechnology Category = "technology"
	CategoryNature     Category = "nature"
)

// Categories lists every question category in display order.
var Categories = []Category{
	CategoryMath, CategoryScience, CategoryHistory, CategoryGeography,
	CategoryCulture, CategorySports, CategoryTechnology, CategoryNature,
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists question difficulties from easiest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// Tier groups guessing-game words by length.
type Tier string

const (
	TierShort  Tier = "short"
	TierMedium Tier = "medium"
	TierLong   Tier = "long"
	TierHard   Tier = "hard"
)

var Tiers = []Tier{TierShort, TierMedium, TierLong, TierHard}

// RiddleKinds lists the riddle groups shipped with the default bank.
var RiddleKinds = []string{"easy", "hard", "funny", "logic"}

type Question struct {
	Text        string     `yaml:"text" validate:"required"`
	Answers     []string   `yaml:"answers" validate:"required,min=1,dive,required"`
	Difficulty  Difficulty `yaml:"difficulty" validate:"oneof=easy medium hard"`
	Category    Category   `yaml:"category" validate:"oneof=math science history geography culture sports technology nature"`
	Explanation string     `yaml:"explanation"`
}

type Riddle struct {
	Text    string   `yaml:"text" validate:"required"`
	Answers []string `yaml:"answers" validate:"required,min=1,dive,required"`
	Hint    string   `yaml:"hint"`
	Kind    string   `yaml:"kind" validate:"required"`
}

type Word struct {
	Text string
	Tier Tier
}

type bankFile struct {
	Questions []Question        `yaml:"questions" validate:"dive"`
	Riddles   []Riddle          `yaml:"riddles" validate:"dive"`
	Words     map[Tier][]string `yaml:"words" validate:"dive,keys,oneof=short medium long hard,endkeys,required"`
}

// Bank is an in-memory content store. Picks are random; the generator is
// guarded so a Bank is safe for concurrent use.
type Bank struct {
	questions []Question
	riddles   []Riddle
	words     []Word

	mu  sync.Mutex
	rnd *rand.Rand
}

// Load reads the bank from path, or the embedded default when path is empty.
// A nil rnd gets a time-seeded generator.
func Load(path string, rnd *rand.Rand) (*Bank, error) {
	data := defaultBank
	source := "embedded"
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content %s: %w", path, err)
		}
		data, source = raw, path
	}
	b, err := Parse(data, rnd)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", source, err)
	}
	logger.Info(logger.Background(), "content", "load",
		slog.String("source", source),
		slog.Int("questions", len(b.questions)),
		slog.Int("riddles", len(b.riddles)),
		slog.Int("words", len(b.words)),
	)
	return b, nil
}

// Parse decodes and validates a YAML bank.
func Parse(data []byte, rnd *rand.Rand) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	b := &Bank{questions: f.Questions, riddles: f.Riddles, rnd: rnd}
	for _, tier := range Tiers {
		for _, w := range f.Words[tier] {
			b.words = append(b.words, Word{Text: strings.ToLower(strings.TrimSpace(w)), Tier: tier})
		}
	}
	return b, nil
}

// Question picks a question matching the selector. Empty values match any;
// a filtered miss falls back to the whole set.
func (b *Bank) Question(category Category, difficulty Difficulty) (Question, error) {
	pool := filter(b.questions, func(q Question) bool {
		return (category == "" || q.Category == category) && (difficulty == "" || q.Difficulty == difficulty)
	})
	if len(pool) == 0 {
		b.fallback("question", string(category)+"/"+string(difficulty))
		pool = b.questions
	}
	if len(pool) == 0 {
		return Question{}, ErrContentUnavailable
	}
	return pool[b.intn(len(pool))], nil
}

// Riddle picks a riddle of the given kind, or any kind.
func (b *Bank) Riddle(kind string) (Riddle, error) {
	pool := filter(b.riddles, func(r Riddle) bool { return kind == "" || r.Kind == kind })
	if len(pool) == 0 {
		b.fallback("riddle", kind)
		pool = b.riddles
	}
	if len(pool) == 0 {
		return Riddle{}, ErrContentUnavailable
	}
	return pool[b.intn(len(pool))], nil
}

// Word picks a word of the given tier. With no tier one of short, medium
// or long is chosen first.
func (b *Bank) Word(tier Tier) (Word, error) {
	if tier == "" {
		tier = []Tier{TierShort, TierMedium, TierLong}[b.intn(3)]
	}
	pool := filter(b.words, func(w Word) bool { return w.Tier == tier })
	if len(pool) == 0 {
		b.fallback("word", string(tier))
		pool = b.words
	}
	if len(pool) == 0 {
		return Word{}, ErrContentUnavailable
	}
	return pool[b.intn(len(pool))], nil
}

// Stats reports how much material the bank holds.
func (b *Bank) Stats() (questions, riddles, words int) {
	return len(b.questions), len(b.riddles), len(b.words)
}

func (b *Bank) intn(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.Intn(n)
}

func (b *Bank) fallback(kind, selector string) {
	logger.Debug(logger.Background(), "content", "fallback",
		slog.String("kind", kind),
		slog.String("selector", selector),
	)
}

func filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Normalize folds an answer for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matches reports whether input equals one of the accepted answers.
func Matches(answers []string, input string) bool {
	in := Normalize(input)
	for _, a := range answers {
		if Normalize(a) == in {
			return true
		}
	}
	return false
}
