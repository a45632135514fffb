package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/profile"
)

// Config tunes game sizes and session lifetime.
type Config struct {
	SpeedQuestions int
	SpeedDuration  time.Duration
	MixedQuestions int
	WordAttempts   int
	WordHints      int
	// IdleTimeout evicts sessions untouched for this long; 0 disables.
	IdleTimeout time.Duration
}

// DefaultConfig returns the stock game settings.
func DefaultConfig() Config {
	return Config{
		SpeedQuestions: 5,
		SpeedDuration:  60 * time.Second,
		MixedQuestions: 10,
		WordAttempts:   6,
		WordHints:      2,
		IdleTimeout:    30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SpeedQuestions <= 0 {
		c.SpeedQuestions = d.SpeedQuestions
	}
	if c.SpeedDuration <= 0 {
		c.SpeedDuration = d.SpeedDuration
	}
	if c.MixedQuestions <= 0 {
		c.MixedQuestions = d.MixedQuestions
	}
	if c.WordAttempts <= 0 {
		c.WordAttempts = d.WordAttempts
	}
	if c.WordHints <= 0 {
		c.WordHints = d.WordHints
	}
	return c
}

type Options struct {
	Store    ProfileStore
	Content  ContentSource
	Config   Config
	Now      func() time.Time
	Rand     *rand.Rand
	Observer Observer
}

type session struct {
	id      string
	kind    Kind
	started time.Time
	touched time.Time
	busy    bool
	m       machine
}

// Registry holds at most one session per user. The map lock is never held
// across a profile store write; a session being submitted is marked busy
// instead, so a duplicate tap fails fast.
type Registry struct {
	store    ProfileStore
	content  ContentSource
	cfg      Config
	now      func() time.Time
	observer Observer

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu       sync.Mutex
	sessions map[int64]*session
}

func NewRegistry(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, errors.New("game: profile store is required")
	}
	if opts.Content == nil {
		return nil, errors.New("game: content source is required")
	}
	r := &Registry{
		store:    opts.Store,
		content:  opts.Content,
		cfg:      opts.Config.withDefaults(),
		now:      opts.Now,
		observer: opts.Observer,
		rnd:      opts.Rand,
		sessions: make(map[int64]*session),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r, nil
}

// Config returns the effective settings.
func (r *Registry) Config() Config { return r.cfg }

// Start opens a session of the given kind for the user. The slot is
// reserved busy while the content source builds the game, so the map lock
// is not held across it.
func (r *Registry) Start(ctx context.Context, userID int64, kind Kind, sel Selector) (Prompt, error) {
	now := r.now()
	s := &session{id: uuid.NewString(), kind: kind, started: now, touched: now, busy: true}
	r.mu.Lock()
	if existing, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		logger.Debug(ctx, "game", "start.rejected",
			slog.String("active", string(existing.kind)),
			slog.String("game", string(kind)),
		)
		return Prompt{}, ErrSessionAlreadyActive
	}
	r.sessions[userID] = s
	r.mu.Unlock()

	m, err := r.build(kind, sel, now)

	r.mu.Lock()
	if err != nil {
		if r.sessions[userID] == s {
			delete(r.sessions, userID)
		}
		r.mu.Unlock()
		if !errors.Is(err, ErrUnknownKind) {
			logger.Warn(ctx, "game", "start",
				slog.String("status", "fail"),
				slog.String("game", string(kind)),
				slog.String("err", err.Error()),
			)
		}
		return Prompt{}, err
	}
	s.m = m
	s.busy = false
	p := s.prompt()
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.GameStarted(string(kind))
	}
	logger.Info(logger.WithSession(ctx, s.id, string(kind)), "game", "start")
	return p, nil
}

func (r *Registry) build(kind Kind, sel Selector, now time.Time) (machine, error) {
	switch kind {
	case KindTrivia:
		q, err := r.content.Question(sel.Category, sel.Difficulty)
		if err != nil {
			return nil, err
		}
		return &singleQuestion{q: q}, nil
	case KindSpeedQuiz:
		qs, err := r.questions(r.cfg.SpeedQuestions, func() (content.Category, content.Difficulty) {
			return sel.Category, sel.Difficulty
		})
		if err != nil {
			return nil, err
		}
		return &batchQuiz{questions: qs, deadline: now.Add(r.cfg.SpeedDuration)}, nil
	case KindMixedQuiz:
		qs, err := r.questions(r.cfg.MixedQuestions, func() (content.Category, content.Difficulty) {
			return content.Categories[r.intn(len(content.Categories))],
				content.Difficulties[r.intn(len(content.Difficulties))]
		})
		if err != nil {
			return nil, err
		}
		return &batchQuiz{questions: qs}, nil
	case KindWord:
		w, err := r.content.Word(sel.Tier)
		if err != nil {
			return nil, err
		}
		return newWordGuess(w, r.cfg.WordAttempts, r.cfg.WordHints), nil
	case KindRiddle:
		rd, err := r.content.Riddle(sel.RiddleKind)
		if err != nil {
			return nil, err
		}
		return &riddleGame{r: rd}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (r *Registry) questions(n int, pick func() (content.Category, content.Difficulty)) ([]content.Question, error) {
	out := make([]content.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := r.content.Question(pick())
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Submit feeds one answer to the user's session.
func (r *Registry) Submit(ctx context.Context, userID int64, input string) (Outcome, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return Outcome{}, ErrNoActiveSession
	}
	if s.busy {
		r.mu.Unlock()
		return Outcome{}, ErrSessionBusy
	}
	s.busy = true
	r.mu.Unlock()

	ctx = logger.WithSession(ctx, s.id, string(s.kind))
	now := r.now()
	st, err := s.m.submit(now, input)
	if err != nil {
		r.release(userID, s, now, false)
		return Outcome{}, err
	}
	out, err := r.commit(ctx, userID, s, st)
	r.release(userID, s, now, st.done)
	return out, err
}

// Cancel ends the user's session. Only a riddle has a cost for giving up.
// A session with a submit in flight is left alone.
func (r *Registry) Cancel(ctx context.Context, userID int64) (Outcome, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return Outcome{}, ErrNoActiveSession
	}
	if s.busy {
		r.mu.Unlock()
		return Outcome{}, ErrSessionBusy
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	ctx = logger.WithSession(ctx, s.id, string(s.kind))
	return r.commit(ctx, userID, s, s.m.cancel())
}

// Active reports the kind of the user's live session.
func (r *Registry) Active(userID int64) (Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return "", false
	}
	return s.kind, true
}

// Current returns the prompt the user is expected to answer.
func (r *Registry) Current(userID int64) (Prompt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok || s.busy {
		return Prompt{}, false
	}
	return s.prompt(), true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle since before now minus the idle timeout.
// Evicted sessions have no score effect.
func (r *Registry) Sweep(now time.Time) int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-r.cfg.IdleTimeout)
	var evicted []*session
	r.mu.Lock()
	for id, s := range r.sessions {
		if !s.busy && s.touched.Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, s)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		if r.observer != nil {
			r.observer.GameFinished(string(s.kind), "evicted", 0)
		}
		logger.Info(logger.WithSession(logger.Background(), s.id, string(s.kind)), "game", "evict",
			slog.Duration("idle", logger.RoundMS(now.Sub(s.touched))),
		)
	}
	return len(evicted)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 || r.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				logger.Debug(ctx, "game", "janitor.sweep",
					slog.Int("count", n),
					slog.Int("active", r.Len()),
				)
			}
		}
	}
}

func (r *Registry) release(userID int64, s *session, now time.Time, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.busy = false
	s.touched = now
	if done && r.sessions[userID] == s {
		delete(r.sessions, userID)
	}
}

// commit applies the step's profile delta and fills the shared outcome fields.
// A failed durable write keeps the in-memory result; the store already logged
// it, so the game carries on.
func (r *Registry) commit(ctx context.Context, userID int64, s *session, st step) (Outcome, error) {
	out := st.outcome
	out.SessionID = s.id
	out.Kind = s.kind
	out.Terminal = st.done
	if out.Next != nil {
		out.Next.SessionID = s.id
		out.Next.Kind = s.kind
	}

	if !st.delta.IsZero() {
		res, err := r.store.Update(ctx, userID, st.delta)
		if err != nil && !errors.Is(err, profile.ErrPersistence) {
			logger.Error(ctx, "game", "commit",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			return out, fmt.Errorf("apply game result: %w", err)
		}
		out.Granted = res.Granted
		out.Streak = res.Streak
		out.StreakChanged = res.StreakChanged
	}

	if st.done {
		if r.observer != nil {
			r.observer.GameFinished(string(s.kind), string(out.State), out.ScoreDelta)
		}
		logger.Info(ctx, "game", "finish",
			slog.String("state", string(out.State)),
			slog.Int64("score_delta", out.ScoreDelta),
			slog.Duration("duration", logger.RoundMS(r.now().Sub(s.started))),
		)
	}
	return out, nil
}

func (r *Registry) intn(n int) int {
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.rnd.Intn(n)
}

func (s *session) prompt() Prompt {
	p := s.m.prompt()
	p.SessionID = s.id
	p.Kind = s.kind
	return p
}
