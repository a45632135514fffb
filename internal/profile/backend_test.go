package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/internal/achievement"
)

func sampleDocument() *Document {
	return &Document{
		Version: SchemaVersion,
		NextSeq: 2,
		Profiles: map[string]*Profile{
			"11": {Seq: 0, Score: 30, Answered: 4, Correct: 3, Streak: 2, MaxStreak: 2, LastActiveDate: "2024-03-09",
				Achievements: []achievement.Key{achievement.FirstAnswer},
				CreatedAt:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), LastActivity: time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)},
			"22": {Seq: 1, Score: -2, Answered: 2},
		},
	}
}

func TestFileBackendSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	b := NewFileBackend(path, time.UTC)
	ctx := context.Background()

	doc, err := b.Load(ctx)
	if err != nil || doc != nil {
		t.Fatalf("empty load: %v %v", doc, err)
	}
	if err := b.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// second save exercises the backup swap
	if err := b.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("save again: %v", err)
	}
	for _, leftover := range []string{path + ".bak", path + ".tmp"} {
		if _, err := os.Stat(leftover); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s should be removed after a successful save", leftover)
		}
	}

	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := got.Profiles["11"]
	if p == nil || p.UserID != 11 || p.Score != 30 || p.LastActiveDate != "2024-03-09" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if got.NextSeq != 2 {
		t.Fatalf("next_seq = %d", got.NextSeq)
	}
}

func TestFileBackendFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	b := NewFileBackend(path, time.UTC)
	ctx := context.Background()
	if err := b.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// simulate a crash after the primary was moved aside and a torn write
	if err := os.Rename(path, path+".bak"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"version":1,"profiles":{`), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}

	doc, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Profiles["22"] == nil || doc.Profiles["22"].Score != -2 {
		t.Fatalf("backup not used: %+v", doc.Profiles)
	}

	// primary missing, backup present
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if doc, err = b.Load(ctx); err != nil || doc == nil {
		t.Fatalf("load from backup only: %v %v", doc, err)
	}
}

func TestFileBackendCorruptWithoutBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewFileBackend(path, time.UTC).Load(context.Background())
	if !errors.Is(err, ErrCorruptDocument) {
		t.Fatalf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestFileBackendSaveFailureKeepsPrimary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.json")
	b := NewFileBackend(path, time.UTC)
	ctx := context.Background()
	if err := b.Save(ctx, sampleDocument()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a directory squatting on the temp path makes the write fail
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := b.Save(ctx, &Document{Version: SchemaVersion}); err == nil {
		t.Fatal("expected save failure")
	}
	doc, err := b.Load(ctx)
	if err != nil || len(doc.Profiles) != 2 {
		t.Fatalf("primary damaged by failed save: %v %+v", err, doc)
	}
}

func TestDecodeLegacyDocument(t *testing.T) {
	legacy := `{
  "500": {"score": 120, "answered": 10, "correct": 6, "games_played": 1, "riddles_solved": 0,
          "words_guessed": 0, "streak": 2, "last_day": "2024-02-01", "max_streak": 4,
          "achievements": ["🎯 Первый ответ", "💯 100 очков", "📅 Ежедневный игрок (7 дней подряд)"],
          "created_at": "2024-01-05T10:00:00.123456", "last_activity": "2024-02-01T09:00:00",
          "total_time_played": 0, "favorite_category": "", "level": 1},
  "400": {"score": 5, "answered": 1, "correct": 1, "streak": 0, "last_day": "", "max_streak": 0,
          "achievements": [], "created_at": "2024-01-06T10:00:00", "last_activity": "2024-01-06T10:00:00"}
}`
	doc, err := DecodeDocument([]byte(legacy), time.UTC)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Version != SchemaVersion || doc.NextSeq != 2 {
		t.Fatalf("unexpected header %+v", doc)
	}
	p := doc.Profiles["500"]
	if p.Seq != 0 || doc.Profiles["400"].Seq != 1 {
		t.Fatalf("seq should follow created_at: %d %d", p.Seq, doc.Profiles["400"].Seq)
	}
	if p.LastActiveDate != "2024-02-01" || p.MaxStreak != 4 {
		t.Fatalf("streak fields not migrated: %+v", p)
	}
	if len(p.Achievements) != 2 || p.Achievements[0] != achievement.FirstAnswer || p.Achievements[1] != achievement.Score100 {
		t.Fatalf("achievements not mapped to keys: %v", p.Achievements)
	}
	if p.CreatedAt.Year() != 2024 || p.CreatedAt.Nanosecond() != 123456000 {
		t.Fatalf("created_at not parsed: %v", p.CreatedAt)
	}
}

func TestDecodeRejectsInvalidProfiles(t *testing.T) {
	cases := map[string]string{
		"correct above answered": `{"version":1,"profiles":{"1":{"answered":1,"correct":2}}}`,
		"unknown achievement":    `{"version":1,"profiles":{"1":{"achievements":["daily_player"]}}}`,
		"streak above max":       `{"version":1,"profiles":{"1":{"streak":3,"max_streak":1}}}`,
		"bad date":               `{"version":1,"profiles":{"1":{"last_active_date":"01.02.2024"}}}`,
		"bad id":                 `{"version":1,"profiles":{"abc":{}}}`,
	}
	for name, raw := range cases {
		if _, err := DecodeDocument([]byte(raw), time.UTC); !errors.Is(err, ErrCorruptDocument) {
			t.Fatalf("%s: expected ErrCorruptDocument, got %v", name, err)
		}
	}
	if _, err := DecodeDocument([]byte(`{"version":9,"profiles":{}}`), time.UTC); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestSQLBackendRoundTrip(t *testing.T) {
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "quiz.db")}
	if err := database.RunMigrations(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	exerciseBackend(t, NewSQLBackend(db))

	var score int64
	if err := db.Get(&score, db.Rebind(`SELECT score FROM profiles WHERE user_id = ?`), 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if score != 9 {
		t.Fatalf("score column = %d", score)
	}
}

func TestRedisBackendRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	exerciseBackend(t, NewRedisBackend(client, "", time.UTC))
	if !mr.Exists(DefaultRedisKey) {
		t.Fatalf("expected key %s", DefaultRedisKey)
	}
}

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()
	s, _ := newTestStore(t, backend)
	if _, err := s.Update(ctx, 1, Delta{Score: 9, Answered: 2, Correct: 1, TouchStreak: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Update(ctx, 2, Delta{Score: 9}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.ApplyDelta(ctx, 2, FieldScore, 1); err != nil {
		t.Fatalf("apply: %v", err)
	}

	reopened, _ := newTestStore(t, backend)
	for _, id := range []int64{1, 2} {
		want, _ := s.Get(id)
		got, ok := reopened.Get(id)
		if !ok || !profilesEqual(want, got) {
			t.Fatalf("user %d mismatch:\nwant %+v\ngot  %+v", id, want, got)
		}
	}
	board := reopened.Leaderboard(0)
	if len(board) != 2 || board[0].Profile.UserID != 2 {
		t.Fatalf("leaderboard after reload: %+v", board)
	}
}
