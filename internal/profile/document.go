package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/m3rciful/quizbot/internal/achievement"
)

// SchemaVersion is the current persisted document version.
const SchemaVersion = 1

var (
	// ErrCorruptDocument is returned when stored bytes cannot be decoded or validated.
	ErrCorruptDocument = errors.New("profile: corrupt document")
	// ErrUnsupportedVersion is returned for documents written by a newer schema.
	ErrUnsupportedVersion = errors.New("profile: unsupported document version")
)

// Document is the full persisted state of the store.
type Document struct {
	Version  int                 `json:"version"`
	NextSeq  int64               `json:"next_seq"`
	Profiles map[string]*Profile `json:"profiles"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("achievement", func(fl validator.FieldLevel) bool {
			return achievement.Known(achievement.Key(fl.Field().String()))
		})
	})
	return validate
}

// ValidateProfile checks the declared field constraints of p.
func ValidateProfile(p *Profile) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrCorruptDocument)
	}
	if err := getValidator().Struct(p); err != nil {
		return fmt.Errorf("%w: user %d: %v", ErrCorruptDocument, p.UserID, err)
	}
	return nil
}

// Validate checks every profile and fills UserID from the map key.
func (d *Document) Validate() error {
	if d.Version > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	for key, p := range d.Profiles {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad user id %q", ErrCorruptDocument, key)
		}
		if p == nil {
			return fmt.Errorf("%w: empty profile for %q", ErrCorruptDocument, key)
		}
		p.UserID = id
		if err := ValidateProfile(p); err != nil {
			return err
		}
		if p.Seq >= d.NextSeq {
			d.NextSeq = p.Seq + 1
		}
	}
	return nil
}

// EncodeDocument renders d as indented JSON.
func EncodeDocument(d *Document) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// DecodeDocument parses a versioned document or migrates a legacy bare mapping.
// Legacy timestamps and dates are interpreted in loc.
func DecodeDocument(data []byte, loc *time.Location) (*Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var doc *Document
	if _, versioned := probe["version"]; versioned {
		doc = &Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}
		if doc.Profiles == nil {
			doc.Profiles = make(map[string]*Profile)
		}
	} else {
		var err error
		doc, err = migrateLegacy(probe, loc)
		if err != nil {
			return nil, err
		}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

type legacyProfile struct {
	Score         int64    `json:"score"`
	Answered      int64    `json:"answered"`
	Correct       int64    `json:"correct"`
	GamesPlayed   int64    `json:"games_played"`
	RiddlesSolved int64    `json:"riddles_solved"`
	WordsGuessed  int64    `json:"words_guessed"`
	Streak        int      `json:"streak"`
	MaxStreak     int      `json:"max_streak"`
	LastDay       string   `json:"last_day"`
	Achievements  []string `json:"achievements"`
	CreatedAt     string   `json:"created_at"`
	LastActivity  string   `json:"last_activity"`
}

var legacyTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	DateLayout,
}

func parseLegacyTime(raw string, loc *time.Location) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func migrateLegacy(raw map[string]json.RawMessage, loc *time.Location) (*Document, error) {
	if loc == nil {
		loc = time.Local
	}
	type pending struct {
		key string
		p   *Profile
	}
	list := make([]pending, 0, len(raw))
	for key, body := range raw {
		var lp legacyProfile
		if err := json.Unmarshal(body, &lp); err != nil {
			return nil, fmt.Errorf("%w: legacy profile %q: %v", ErrCorruptDocument, key, err)
		}
		p := &Profile{
			Score:          lp.Score,
			Answered:       lp.Answered,
			Correct:        lp.Correct,
			GamesPlayed:    lp.GamesPlayed,
			RiddlesSolved:  lp.RiddlesSolved,
			WordsGuessed:   lp.WordsGuessed,
			Streak:         lp.Streak,
			MaxStreak:      max(lp.MaxStreak, lp.Streak),
			LastActiveDate: strings.TrimSpace(lp.LastDay),
			CreatedAt:      parseLegacyTime(lp.CreatedAt, loc),
			LastActivity:   parseLegacyTime(lp.LastActivity, loc),
		}
		if p.Correct > p.Answered {
			p.Answered = p.Correct
		}
		for _, a := range lp.Achievements {
			key, ok := achievement.FromTitle(a)
			if !ok && achievement.Known(achievement.Key(a)) {
				key, ok = achievement.Key(a), true
			}
			if ok && !p.HasAchievement(key) {
				p.Achievements = append(p.Achievements, key)
			}
		}
		list = append(list, pending{key: key, p: p})
	}

	// Legacy files carry no creation order, so seq follows created_at then id.
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].p.CreatedAt, list[j].p.CreatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return list[i].key < list[j].key
	})

	doc := &Document{Version: SchemaVersion, Profiles: make(map[string]*Profile, len(list))}
	for _, item := range list {
		item.p.Seq = doc.NextSeq
		doc.NextSeq++
		doc.Profiles[item.key] = item.p
	}
	return doc, nil
}
