package profile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/achievement"
)

// PersistObserver receives the outcome of every durable write.
type PersistObserver interface {
	ObservePersist(backend string, took time.Duration, err error)
}

// Options configures a Store.
type Options struct {
	Backend  Backend
	Now      func() time.Time
	Location *time.Location
	Observer PersistObserver
}

// Store is the single-writer owner of all profiles. Every mutation and its
// full-document write run under one mutex.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	now      func() time.Time
	loc      *time.Location
	observer PersistObserver

	profiles map[int64]*Profile
	nextSeq  int64
	dirty    bool
}

// Open loads the persisted document through opts.Backend.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("profile: backend is required")
	}
	s := &Store{
		backend:  opts.Backend,
		now:      opts.Now,
		loc:      opts.Location,
		observer: opts.Observer,
		profiles: make(map[int64]*Profile),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}

	start := time.Now()
	doc, err := opts.Backend.Load(ctx)
	if err != nil {
		logger.Error(ctx, "store", "load",
			slog.String("status", "fail"),
			slog.String("backend", opts.Backend.Name()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("profile: load: %w", err)
	}
	if doc != nil {
		for _, p := range doc.Profiles {
			s.profiles[p.UserID] = p
		}
		s.nextSeq = doc.NextSeq
	}
	logger.Info(ctx, "store", "load",
		slog.String("status", "ok"),
		slog.String("backend", opts.Backend.Name()),
		slog.Int("count", len(s.profiles)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return s, nil
}

// Get returns a copy of the profile without creating it.
func (s *Store) Get(userID int64) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// Ensure returns the profile for userID, creating a default one if needed.
// Creation is persisted best effort; a failed write is logged and retried by
// the next mutation.
func (s *Store) Ensure(ctx context.Context, userID int64) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, created := s.ensureLocked(userID)
	if created {
		_ = s.persistLocked(ctx, "ensure")
	}
	return p.clone()
}

func (s *Store) ensureLocked(userID int64) (*Profile, bool) {
	p, created := s.lookupLocked(userID)
	if created {
		s.insertLocked(p)
	}
	return p, created
}

// lookupLocked returns the stored profile, or a fresh one that is not yet
// part of the store.
func (s *Store) lookupLocked(userID int64) (*Profile, bool) {
	if p, ok := s.profiles[userID]; ok {
		return p, false
	}
	now := s.now()
	return &Profile{
		UserID:       userID,
		Seq:          s.nextSeq,
		CreatedAt:    now,
		LastActivity: now,
	}, true
}

func (s *Store) insertLocked(p *Profile) {
	s.nextSeq++
	s.profiles[p.UserID] = p
	s.dirty = true
}

// ApplyDelta adds amount to a single counter.
func (s *Store) ApplyDelta(ctx context.Context, userID int64, field Field, amount int64) (Result, error) {
	if _, err := ParseField(string(field)); err != nil {
		logger.Error(ctx, "store", "delta.invalid_field",
			slog.String("field", string(field)),
			slog.Int64("user_id", userID),
		)
		return Result{}, err
	}
	var d Delta
	switch field {
	case FieldScore:
		d.Score = amount
	case FieldAnswered:
		d.Answered = amount
	case FieldCorrect:
		d.Correct = amount
	case FieldGamesPlayed:
		d.GamesPlayed = amount
	case FieldRiddlesSolved:
		d.RiddlesSolved = amount
	case FieldWordsGuessed:
		d.WordsGuessed = amount
	}
	return s.mutate(ctx, userID, "delta."+string(field), d)
}

// Update applies a batch of counter changes and an optional streak touch in
// one critical section followed by a single write.
func (s *Store) Update(ctx context.Context, userID int64, d Delta) (Result, error) {
	return s.mutate(ctx, userID, "update", d)
}

func (s *Store) mutate(ctx context.Context, userID int64, op string, d Delta) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, created := s.lookupLocked(userID)
	next := current.clone()
	d.apply(&next)

	var res Result
	if d.TouchStreak {
		res.StreakChanged = s.touchLocked(&next)
	}
	if err := next.checkInvariants(); err != nil {
		logger.Error(ctx, "store", "mutate.rejected",
			slog.String("op", op),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return Result{Profile: current.clone(), Streak: current.Streak}, err
	}

	if now := s.now(); now.After(next.LastActivity) {
		next.LastActivity = now
	}
	res.Granted = grantEarned(&next)
	*current = next
	if created {
		s.insertLocked(current)
	}
	s.dirty = true

	res.Profile = current.clone()
	res.Streak = current.Streak
	logger.Debug(ctx, "store", "mutate",
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.Int64("delta", d.Score),
		slog.Int64("score", current.Score),
		slog.Int("granted", len(res.Granted)),
	)
	return res, s.persistLocked(ctx, op)
}

// GrantAchievement adds key when absent. It persists only on change.
func (s *Store) GrantAchievement(ctx context.Context, userID int64, key achievement.Key) (bool, error) {
	if !achievement.Known(key) {
		logger.Error(ctx, "store", "grant.unknown",
			slog.String("key", string(key)),
			slog.Int64("user_id", userID),
		)
		return false, fmt.Errorf("%w: %s", ErrUnknownAchievement, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.ensureLocked(userID)
	if p.HasAchievement(key) {
		return false, nil
	}
	p.Achievements = append(p.Achievements, key)
	s.dirty = true
	logger.Info(ctx, "store", "achievement.granted",
		slog.Int64("user_id", userID),
		slog.String("key", string(key)),
	)
	return true, s.persistLocked(ctx, "grant")
}

// TouchStreak records streak-qualifying activity for the current local date.
func (s *Store) TouchStreak(ctx context.Context, userID int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, created := s.ensureLocked(userID)
	changed := s.touchLocked(p)
	if !changed {
		if created {
			return p.Streak, false, s.persistLocked(ctx, "ensure")
		}
		return p.Streak, false, nil
	}
	grantEarned(p)
	s.dirty = true
	return p.Streak, true, s.persistLocked(ctx, "streak")
}

func (s *Store) touchLocked(p *Profile) bool {
	local := s.now().In(s.loc)
	today := local.Format(DateLayout)
	if p.LastActiveDate == today {
		return false
	}
	yesterday := local.AddDate(0, 0, -1).Format(DateLayout)
	if p.LastActiveDate == yesterday {
		p.Streak++
	} else {
		p.Streak = 1
	}
	p.LastActiveDate = today
	p.MaxStreak = max(p.MaxStreak, p.Streak)
	return true
}

// ResetUser zeroes every counter and clears achievements. Identity, seq and
// created_at survive.
func (s *Store) ResetUser(ctx context.Context, userID int64) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.ensureLocked(userID)
	*p = Profile{
		UserID:       p.UserID,
		Seq:          p.Seq,
		CreatedAt:    p.CreatedAt,
		LastActivity: p.LastActivity,
	}
	if now := s.now(); now.After(p.LastActivity) {
		p.LastActivity = now
	}
	s.dirty = true
	logger.Info(ctx, "store", "reset", slog.Int64("user_id", userID))
	return p.clone(), s.persistLocked(ctx, "reset")
}

// Leaderboard returns the top limit profiles by score. Equal scores keep
// creation order.
func (s *Store) Leaderboard(limit int) []Entry {
	s.mu.Lock()
	list := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		list = append(list, p.clone())
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Seq < list[j].Seq
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]Entry, len(list))
	for i, p := range list {
		out[i] = Entry{Rank: i + 1, Profile: p}
	}
	return out
}

// Summary aggregates totals over every profile.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum Summary
	sum.TotalUsers = len(s.profiles)
	for _, p := range s.profiles {
		sum.TotalScore += p.Score
		sum.TotalAnswers += p.Answered
	}
	if sum.TotalUsers > 0 {
		avg := float64(sum.TotalScore) / float64(sum.TotalUsers)
		sum.AverageScore = math.Round(avg*100) / 100
	}
	return sum
}

// Flush retries a pending write left by an earlier failure.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx, "flush")
}

// Dirty reports whether in-memory state is ahead of storage.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Store) persistLocked(ctx context.Context, op string) error {
	doc := &Document{
		Version:  SchemaVersion,
		NextSeq:  s.nextSeq,
		Profiles: make(map[string]*Profile, len(s.profiles)),
	}
	for id, p := range s.profiles {
		c := p.clone()
		doc.Profiles[strconv.FormatInt(id, 10)] = &c
	}

	start := time.Now()
	err := s.backend.Save(ctx, doc)
	took := time.Since(start)
	if s.observer != nil {
		s.observer.ObservePersist(s.backend.Name(), took, err)
	}
	if err != nil {
		logger.Error(ctx, "store", "persist",
			slog.String("status", "fail"),
			slog.String("op", op),
			slog.String("backend", s.backend.Name()),
			slog.String("cause", "durability_risk"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.dirty = false
	logger.Debug(ctx, "store", "persist",
		slog.String("status", "ok"),
		slog.String("op", op),
		slog.Int("count", len(doc.Profiles)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func grantEarned(p *Profile) []achievement.Key {
	var granted []achievement.Key
	for _, key := range achievement.Evaluate(p.Stats()) {
		if p.HasAchievement(key) {
			continue
		}
		p.Achievements = append(p.Achievements, key)
		granted = append(granted, key)
	}
	return granted
}
