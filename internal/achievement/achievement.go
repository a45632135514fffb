// Package achievement derives badge grants from profile statistics.
package achievement

// Key identifies a catalog entry. Keys are what profiles persist.
type Key string

const (
	FirstAnswer  Key = "first_answer"
	QuizMaster   Key = "quiz_master"
	Streak3      Key = "streak_3"
	Streak7      Key = "streak_7"
	Streak30     Key = "streak_30"
	Score100     Key = "score_100"
	Score500     Key = "score_500"
	Score1000    Key = "score_1000"
	RiddleSolver Key = "riddle_solver"
	WordChampion Key = "word_champion"
)

// Stats is the subset of a profile the evaluator reads.
type Stats struct {
	Score         int64
	Correct       int64
	Streak        int
	RiddlesSolved int64
	WordsGuessed  int64
}

// Definition describes a single catalog entry.
type Definition struct {
	Key       Key
	Title     string
	Family    string
	Threshold int64
}

type tier struct {
	threshold int64
	key       Key
}

type family struct {
	name  string
	value func(Stats) int64
	// tiers sorted by threshold descending
	tiers []tier
}

var families = []family{
	{
		name:  "score",
		value: func(s Stats) int64 { return s.Score },
		tiers: []tier{{1000, Score1000}, {500, Score500}, {100, Score100}},
	},
	{
		name:  "streak",
		value: func(s Stats) int64 { return int64(s.Streak) },
		tiers: []tier{{30, Streak30}, {7, Streak7}, {3, Streak3}},
	},
	{
		name:  "correct",
		value: func(s Stats) int64 { return s.Correct },
		tiers: []tier{{50, QuizMaster}, {1, FirstAnswer}},
	},
	{
		name:  "riddles",
		value: func(s Stats) int64 { return s.RiddlesSolved },
		tiers: []tier{{20, RiddleSolver}},
	},
	{
		name:  "words",
		value: func(s Stats) int64 { return s.WordsGuessed },
		tiers: []tier{{10, WordChampion}},
	},
}

var titles = map[Key]string{
	FirstAnswer:  "🎯 Первый ответ",
	Streak3:      "🔥 Серия 3",
	Streak7:      "🔥🔥 Серия 7",
	Streak30:     "🔥🔥🔥 Серия 30",
	Score100:     "💯 100 очков",
	Score500:     "🏆 500 очков",
	Score1000:    "👑 1000 очков",
	QuizMaster:   "🧠 Мастер викторин (50 правильных)",
	RiddleSolver: "🧩 Разгадчик загадок (20 загадок)",
	WordChampion: "📝 Чемпион слов (10 слов)",
}

// Evaluate returns the highest tier reached in every family, in catalog order.
// Lower tiers are not listed; grants already held are never revoked by callers.
func Evaluate(s Stats) []Key {
	var out []Key
	for _, f := range families {
		v := f.value(s)
		for _, t := range f.tiers {
			if v >= t.threshold {
				out = append(out, t.key)
				break
			}
		}
	}
	return out
}

// Known reports whether key belongs to the catalog.
func Known(key Key) bool {
	_, ok := titles[key]
	return ok
}

// Title returns the display title for key, or the raw key when unknown.
func Title(key Key) string {
	if t, ok := titles[key]; ok {
		return t
	}
	return string(key)
}

// FromTitle maps a display title back to its key. Used for legacy documents
// that stored titles instead of keys.
func FromTitle(title string) (Key, bool) {
	for k, t := range titles {
		if t == title {
			return k, true
		}
	}
	return "", false
}

// Catalog lists every definition grouped by family, lowest tier first.
func Catalog() []Definition {
	var defs []Definition
	for _, f := range families {
		for i := len(f.tiers) - 1; i >= 0; i-- {
			t := f.tiers[i]
			defs = append(defs, Definition{
				Key:       t.key,
				Title:     titles[t.key],
				Family:    f.name,
				Threshold: t.threshold,
			})
		}
	}
	return defs
}
