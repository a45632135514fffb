// Package metrics exposes Prometheus collectors for games, profile
// persistence and Telegram update handling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quizbot"

// Metrics groups every collector the bot records. A nil *Metrics is a valid
// no-op sink.
type Metrics struct {
	gamesStarted  *prometheus.CounterVec
	gamesFinished *prometheus.CounterVec
	scoreDelta    *prometheus.CounterVec
	activeGames   *prometheus.GaugeVec

	persistTotal    *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec

	updates         *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	messagesSent    prometheus.Counter
	rateLimited     prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered, which suits tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		gamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Game sessions opened, by kind.",
		}, []string{"game"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that reached a terminal state, by kind and state.",
		}, []string{"game", "state"}),
		scoreDelta: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_points_total",
			Help:      "Absolute score points booked by finished games, by kind and sign.",
		}, []string{"game", "sign"}),
		activeGames: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "games_active",
			Help:      "Game sessions currently open, by kind.",
		}, []string{"game"}),
		persistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_writes_total",
			Help:      "Durable profile document writes, by backend and status.",
		}, []string{"backend", "status"}),
		persistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "profile_write_duration_seconds",
			Help:      "Latency of durable profile document writes.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"backend"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_total",
			Help:      "Telegram updates handled, by handler and status.",
		}, []string{"handler", "status"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_handler_duration_seconds",
			Help:      "Time spent in Telegram handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_messages_sent_total",
			Help:      "Messages sent or edited in reply to updates.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_rate_limited_total",
			Help:      "Updates dropped by the per-user rate limit.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.gamesStarted, m.gamesFinished, m.scoreDelta, m.activeGames,
		m.persistTotal, m.persistDuration,
		m.updates, m.handlerDuration, m.messagesSent, m.rateLimited,
	}
}

// GameStarted counts a newly opened session.
func (m *Metrics) GameStarted(kind string) {
	if m == nil {
		return
	}
	m.gamesStarted.WithLabelValues(kind).Inc()
	m.activeGames.WithLabelValues(kind).Inc()
}

// GameFinished counts a session that reached a terminal state or was evicted.
func (m *Metrics) GameFinished(kind, state string, scoreDelta int64) {
	if m == nil {
		return
	}
	m.gamesFinished.WithLabelValues(kind, state).Inc()
	m.activeGames.WithLabelValues(kind).Dec()
	m.addScore(kind, scoreDelta)
}

// ChancePlayed counts a resolved luck game.
func (m *Metrics) ChancePlayed(game, result string, scoreDelta int64) {
	if m == nil {
		return
	}
	m.gamesStarted.WithLabelValues(game).Inc()
	m.gamesFinished.WithLabelValues(game, result).Inc()
	m.addScore(game, scoreDelta)
}

func (m *Metrics) addScore(kind string, scoreDelta int64) {
	switch {
	case scoreDelta > 0:
		m.scoreDelta.WithLabelValues(kind, "gain").Add(float64(scoreDelta))
	case scoreDelta < 0:
		m.scoreDelta.WithLabelValues(kind, "loss").Add(float64(-scoreDelta))
	}
}

// ObservePersist records one durable write.
func (m *Metrics) ObservePersist(backend string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.persistTotal.WithLabelValues(backend, status(err)).Inc()
	m.persistDuration.WithLabelValues(backend).Observe(took.Seconds())
}

// ObserveUpdate records one handled Telegram update.
func (m *Metrics) ObserveUpdate(handler string, took time.Duration, messages int, err error) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(handler, status(err)).Inc()
	m.handlerDuration.WithLabelValues(handler).Observe(took.Seconds())
	if messages > 0 {
		m.messagesSent.Add(float64(messages))
	}
}

// RateLimited counts an update dropped by the rate limiter.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}
