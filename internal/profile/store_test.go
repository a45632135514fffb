package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/quizbot/internal/achievement"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, backend Backend) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	s, err := Open(context.Background(), Options{Backend: backend, Now: clock.Now, Location: time.UTC})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s, clock
}

func TestApplyDeltaSumsConcurrently(t *testing.T) {
	s, _ := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	users := []int64{1, 2, 3}
	deltas := []int64{5, -2, 7, 1, -1}

	var wg sync.WaitGroup
	for _, uid := range users {
		for _, d := range deltas {
			wg.Add(1)
			go func(uid, d int64) {
				defer wg.Done()
				if _, err := s.ApplyDelta(ctx, uid, FieldScore, d); err != nil {
					t.Errorf("apply: %v", err)
				}
			}(uid, d)
		}
	}
	wg.Wait()

	for _, uid := range users {
		p, ok := s.Get(uid)
		if !ok {
			t.Fatalf("user %d missing", uid)
		}
		if p.Score != 10 {
			t.Fatalf("user %d score = %d, want 10", uid, p.Score)
		}
	}
}

func TestApplyDeltaInvalidField(t *testing.T) {
	s, _ := newTestStore(t, &MemoryBackend{})
	_, err := s.ApplyDelta(context.Background(), 1, Field("streak"), 1)
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("invalid field must not create a profile")
	}
}

func TestApplyDeltaRejectsInvariantBreak(t *testing.T) {
	s, _ := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	if _, err := s.ApplyDelta(ctx, 1, FieldCorrect, 1); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if _, err := s.ApplyDelta(ctx, 1, FieldAnswered, -1); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant for negative counter, got %v", err)
	}
	p, _ := s.Get(1)
	if p.Answered != 0 || p.Correct != 0 {
		t.Fatalf("state changed after rejected mutation: %+v", p)
	}
}

func TestRejectedFirstMutationLeavesNoProfile(t *testing.T) {
	s, _ := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	if _, err := s.Update(ctx, 5, Delta{Correct: 1}); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if _, ok := s.Get(5); ok {
		t.Fatal("rejected mutation created a profile")
	}
	if s.Dirty() {
		t.Fatal("rejected mutation left the store dirty")
	}

	s.Ensure(ctx, 6)
	if p, _ := s.Get(6); p.Seq != 0 {
		t.Fatalf("rejected mutation consumed a seq, next profile got %d", p.Seq)
	}
}

func TestApplyDeltaRefreshesActivityAndGrants(t *testing.T) {
	s, clock := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	first := s.Ensure(ctx, 9)
	clock.Advance(time.Minute)

	res, err := s.ApplyDelta(ctx, 9, FieldScore, 120)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Profile.LastActivity.After(first.LastActivity) {
		t.Fatal("last_activity not refreshed")
	}
	if len(res.Granted) != 1 || res.Granted[0] != achievement.Score100 {
		t.Fatalf("expected score_100 grant, got %v", res.Granted)
	}

	res, err = s.ApplyDelta(ctx, 9, FieldScore, 1)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Granted) != 0 {
		t.Fatalf("re-evaluation granted again: %v", res.Granted)
	}
}

func TestGrantAchievementIdempotent(t *testing.T) {
	backend := &MemoryBackend{}
	s, _ := newTestStore(t, backend)
	ctx := context.Background()
	s.Ensure(ctx, 4)
	before := backend.Saves()

	added, err := s.GrantAchievement(ctx, 4, achievement.RiddleSolver)
	if err != nil || !added {
		t.Fatalf("first grant: added=%v err=%v", added, err)
	}
	added, err = s.GrantAchievement(ctx, 4, achievement.RiddleSolver)
	if err != nil || added {
		t.Fatalf("second grant: added=%v err=%v", added, err)
	}
	p, _ := s.Get(4)
	if len(p.Achievements) != 1 {
		t.Fatalf("achievements = %v", p.Achievements)
	}
	if got := backend.Saves() - before; got != 1 {
		t.Fatalf("expected exactly one write, got %d", got)
	}

	if _, err := s.GrantAchievement(ctx, 4, "daily_player"); !errors.Is(err, ErrUnknownAchievement) {
		t.Fatalf("expected ErrUnknownAchievement, got %v", err)
	}
}

func TestTouchStreak(t *testing.T) {
	s, clock := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()

	streak, changed, err := s.TouchStreak(ctx, 1)
	if err != nil || streak != 1 || !changed {
		t.Fatalf("first touch: %d %v %v", streak, changed, err)
	}
	streak, changed, _ = s.TouchStreak(ctx, 1)
	if streak != 1 || changed {
		t.Fatalf("same day: %d %v", streak, changed)
	}

	clock.Advance(24 * time.Hour)
	streak, changed, _ = s.TouchStreak(ctx, 1)
	if streak != 2 || !changed {
		t.Fatalf("next day: %d %v", streak, changed)
	}
	clock.Advance(24 * time.Hour)
	s.TouchStreak(ctx, 1)

	clock.Advance(72 * time.Hour)
	streak, changed, _ = s.TouchStreak(ctx, 1)
	if streak != 1 || !changed {
		t.Fatalf("after gap: %d %v", streak, changed)
	}
	p, _ := s.Get(1)
	if p.MaxStreak != 3 {
		t.Fatalf("max_streak = %d, want 3", p.MaxStreak)
	}
	if !p.HasAchievement(achievement.Streak3) {
		t.Fatalf("expected streak_3, got %v", p.Achievements)
	}
}

func TestTouchStreakUsesLocalDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	clock := &fakeClock{now: time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)}
	s, err := Open(context.Background(), Options{Backend: &MemoryBackend{}, Now: clock.Now, Location: loc})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	s.TouchStreak(ctx, 1)
	// 22:00 UTC is already the next local day
	clock.Advance(2 * time.Hour)
	streak, changed, _ := s.TouchStreak(ctx, 1)
	if streak != 2 || !changed {
		t.Fatalf("local midnight not honoured: %d %v", streak, changed)
	}
}

func TestUpdateBatchSingleWrite(t *testing.T) {
	backend := &MemoryBackend{}
	s, _ := newTestStore(t, backend)
	ctx := context.Background()
	s.Ensure(ctx, 1)
	before := backend.Saves()

	res, err := s.Update(ctx, 1, Delta{Score: 6, Answered: 1, Correct: 1, TouchStreak: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if backend.Saves()-before != 1 {
		t.Fatalf("expected one write, got %d", backend.Saves()-before)
	}
	if res.Profile.Score != 6 || res.Streak != 1 || !res.StreakChanged {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Profile.HasAchievement(achievement.FirstAnswer) {
		t.Fatalf("expected first_answer, got %v", res.Profile.Achievements)
	}
}

func TestResetUserKeepsIdentity(t *testing.T) {
	s, clock := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	s.Ensure(ctx, 1)
	created := s.Ensure(ctx, 2)
	s.Update(ctx, 2, Delta{Score: 600, Answered: 3, Correct: 2, GamesPlayed: 1, TouchStreak: true})
	clock.Advance(time.Hour)

	p, err := s.ResetUser(ctx, 2)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if p.Score != 0 || p.Answered != 0 || p.Streak != 0 || p.MaxStreak != 0 || len(p.Achievements) != 0 || p.LastActiveDate != "" {
		t.Fatalf("counters not cleared: %+v", p)
	}
	if p.Seq != created.Seq || !p.CreatedAt.Equal(created.CreatedAt) || p.UserID != 2 {
		t.Fatalf("identity lost: %+v", p)
	}
}

func TestLeaderboardTieBreak(t *testing.T) {
	s, _ := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	const a, b, c = 100, 200, 300
	s.ApplyDelta(ctx, a, FieldScore, 50)
	s.ApplyDelta(ctx, b, FieldScore, 100)
	s.ApplyDelta(ctx, c, FieldScore, 100)

	board := s.Leaderboard(10)
	if len(board) != 3 {
		t.Fatalf("board size %d", len(board))
	}
	want := []int64{b, c, a}
	for i, e := range board {
		if e.Profile.UserID != want[i] || e.Rank != i+1 {
			t.Fatalf("position %d = user %d rank %d, want user %d", i, e.Profile.UserID, e.Rank, want[i])
		}
	}
	if top := s.Leaderboard(1); len(top) != 1 || top[0].Profile.UserID != b {
		t.Fatalf("limit not applied: %+v", top)
	}
}

func TestSummary(t *testing.T) {
	s, _ := newTestStore(t, &MemoryBackend{})
	ctx := context.Background()
	if got := s.Summary(); got.TotalUsers != 0 || got.AverageScore != 0 {
		t.Fatalf("empty summary %+v", got)
	}
	s.Update(ctx, 1, Delta{Score: 10, Answered: 2})
	s.Update(ctx, 2, Delta{Score: 5, Answered: 1})
	s.Update(ctx, 3, Delta{Score: 0})
	got := s.Summary()
	if got.TotalUsers != 3 || got.TotalScore != 15 || got.TotalAnswers != 3 || got.AverageScore != 5 {
		t.Fatalf("summary %+v", got)
	}
}

func TestPersistenceFailureKeepsState(t *testing.T) {
	backend := &MemoryBackend{}
	s, _ := newTestStore(t, backend)
	ctx := context.Background()
	backend.FailErr = errors.New("disk full")

	res, err := s.ApplyDelta(ctx, 1, FieldScore, 3)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if res.Profile.Score != 3 {
		t.Fatalf("result profile not returned: %+v", res.Profile)
	}
	if !s.Dirty() {
		t.Fatal("store should be dirty after failed write")
	}

	backend.FailErr = nil
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if s.Dirty() {
		t.Fatal("store still dirty after flush")
	}
	reopened, _ := newTestStore(t, backend)
	if p, ok := reopened.Get(1); !ok || p.Score != 3 {
		t.Fatalf("flushed state not persisted: %+v %v", p, ok)
	}
}

func TestRoundTrip(t *testing.T) {
	backend := &MemoryBackend{}
	s, clock := newTestStore(t, backend)
	ctx := context.Background()
	s.Update(ctx, 1, Delta{Score: 42, Answered: 5, Correct: 4, GamesPlayed: 2, RiddlesSolved: 1, WordsGuessed: 1, TouchStreak: true})
	clock.Advance(time.Hour)
	s.Update(ctx, 2, Delta{Score: -3, Answered: 1})

	reopened, _ := newTestStore(t, backend)
	for _, id := range []int64{1, 2} {
		want, _ := s.Get(id)
		got, ok := reopened.Get(id)
		if !ok {
			t.Fatalf("user %d lost", id)
		}
		if !profilesEqual(want, got) {
			t.Fatalf("user %d mismatch:\nwant %+v\ngot  %+v", id, want, got)
		}
	}
	if fresh := reopened.Ensure(ctx, 3); fresh.Seq != 2 {
		t.Fatalf("next seq not restored: %d", fresh.Seq)
	}
}

func profilesEqual(a, b Profile) bool {
	if len(a.Achievements) != len(b.Achievements) {
		return false
	}
	for i := range a.Achievements {
		if a.Achievements[i] != b.Achievements[i] {
			return false
		}
	}
	return a.UserID == b.UserID && a.Seq == b.Seq && a.Score == b.Score &&
		a.Answered == b.Answered && a.Correct == b.Correct && a.GamesPlayed == b.GamesPlayed &&
		a.RiddlesSolved == b.RiddlesSolved && a.WordsGuessed == b.WordsGuessed &&
		a.Streak == b.Streak && a.MaxStreak == b.MaxStreak && a.LastActiveDate == b.LastActiveDate &&
		a.CreatedAt.Equal(b.CreatedAt) && a.LastActivity.Equal(b.LastActivity)
}
