package content

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBankLoads(t *testing.T) {
	b, err := Load("", rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	q, r, w := b.Stats()
	if q == 0 || r == 0 || w == 0 {
		t.Fatalf("empty default bank: %d %d %d", q, r, w)
	}
	for _, cat := range Categories {
		got, err := b.Question(cat, "")
		if err != nil || got.Category != cat {
			t.Fatalf("category %s: %+v %v", cat, got, err)
		}
	}
	for _, kind := range RiddleKinds {
		got, err := b.Riddle(kind)
		if err != nil || got.Kind != kind {
			t.Fatalf("riddle %s: %+v %v", kind, got, err)
		}
	}
	for _, tier := range Tiers {
		got, err := b.Word(tier)
		if err != nil || got.Tier != tier {
			t.Fatalf("word %s: %+v %v", tier, got, err)
		}
	}
}

func TestQuestionFallsBackWhenFilterMisses(t *testing.T) {
	b, err := Parse([]byte(`
questions:
  - {category: math, difficulty: easy, text: "1+1?", answers: ["2"]}
`), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q, err := b.Question(CategoryHistory, Hard)
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if q.Text != "1+1?" {
		t.Fatalf("expected fallback question, got %+v", q)
	}
	if _, err := b.Riddle("logic"); !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
	if _, err := b.Word(""); !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestWordWithoutTierAvoidsHard(t *testing.T) {
	b, err := Parse([]byte(`
words:
  short: [кот]
  medium: [собака]
  long: [компьютер]
  hard: [криптография]
`), rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	seen := map[Tier]bool{}
	for i := 0; i < 100; i++ {
		w, err := b.Word("")
		if err != nil {
			t.Fatalf("word: %v", err)
		}
		if w.Tier == TierHard {
			t.Fatalf("hard word picked without a tier: %s", w.Text)
		}
		seen[w.Tier] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all three default tiers, saw %v", seen)
	}
}

func TestParseRejectsInvalidBank(t *testing.T) {
	cases := map[string]string{
		"no answers":     `questions: [{category: math, difficulty: easy, text: "q", answers: []}]`,
		"bad difficulty": `questions: [{category: math, difficulty: insane, text: "q", answers: ["a"]}]`,
		"bad category":   `questions: [{category: art, difficulty: easy, text: "q", answers: ["a"]}]`,
		"bad tier":       `words: {tiny: [кот]}`,
		"not yaml":       `questions: [`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw), nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	data := []byte("riddles:\n  - {kind: easy, text: \"Что?\", answers: [\"ничего\"], hint: \"пусто\"}\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, err := b.Riddle("")
	if err != nil || r.Hint != "пусто" {
		t.Fatalf("riddle: %+v %v", r, err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMatches(t *testing.T) {
	answers := []string{"Париж", "paris"}
	for _, in := range []string{"париж", "  ПАРИЖ ", "Paris"} {
		if !Matches(answers, in) {
			t.Fatalf("%q should match", in)
		}
	}
	if Matches(answers, "лондон") || Matches(nil, "") {
		t.Fatal("unexpected match")
	}
}
