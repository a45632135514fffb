package achievement

import (
	"slices"
	"testing"
)

func TestEvaluateHighestTierOnly(t *testing.T) {
	got := Evaluate(Stats{Score: 620, Correct: 3, Streak: 8})
	want := []Key{Score500, Streak7, FirstAnswer}
	if !slices.Equal(got, want) {
		t.Fatalf("Evaluate = %v, want %v", got, want)
	}
}

func TestEvaluateZeroProfile(t *testing.T) {
	if got := Evaluate(Stats{}); len(got) != 0 {
		t.Fatalf("expected no grants, got %v", got)
	}
}

func TestEvaluateNegativeScore(t *testing.T) {
	if got := Evaluate(Stats{Score: -40}); len(got) != 0 {
		t.Fatalf("expected no grants, got %v", got)
	}
}

func TestEvaluateAllFamilies(t *testing.T) {
	got := Evaluate(Stats{Score: 1000, Correct: 50, Streak: 30, RiddlesSolved: 20, WordsGuessed: 10})
	want := []Key{Score1000, Streak30, QuizMaster, RiddleSolver, WordChampion}
	if !slices.Equal(got, want) {
		t.Fatalf("Evaluate = %v, want %v", got, want)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	s := Stats{Score: 150, Correct: 1}
	first := Evaluate(s)
	second := Evaluate(s)
	if !slices.Equal(first, second) {
		t.Fatalf("evaluation not stable: %v vs %v", first, second)
	}
}

func TestCatalogCoversTitles(t *testing.T) {
	defs := Catalog()
	if len(defs) != len(titles) {
		t.Fatalf("catalog has %d entries, titles has %d", len(defs), len(titles))
	}
	for _, d := range defs {
		if !Known(d.Key) {
			t.Fatalf("catalog key %s unknown", d.Key)
		}
		back, ok := FromTitle(d.Title)
		if !ok || back != d.Key {
			t.Fatalf("FromTitle(%q) = %s, %v", d.Title, back, ok)
		}
	}
	if Known("daily_player") {
		t.Fatal("daily_player must not be part of the catalog")
	}
}
