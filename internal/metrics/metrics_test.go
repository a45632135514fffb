package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGameLifecycle(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m.GameStarted("riddle")
	m.GameStarted("riddle")
	m.GameFinished("riddle", "resolved", 3)
	m.GameFinished("riddle", "cancelled", -1)

	if v := testutil.ToFloat64(m.gamesStarted.WithLabelValues("riddle")); v != 2 {
		t.Fatalf("started = %v", v)
	}
	if v := testutil.ToFloat64(m.activeGames.WithLabelValues("riddle")); v != 0 {
		t.Fatalf("active = %v", v)
	}
	if v := testutil.ToFloat64(m.scoreDelta.WithLabelValues("riddle", "gain")); v != 3 {
		t.Fatalf("gain = %v", v)
	}
	if v := testutil.ToFloat64(m.scoreDelta.WithLabelValues("riddle", "loss")); v != 1 {
		t.Fatalf("loss = %v", v)
	}
}

func TestChanceDoesNotMoveActiveGauge(t *testing.T) {
	m, _ := New(nil)
	m.ChancePlayed("dice", "win", 3)
	if v := testutil.ToFloat64(m.gamesFinished.WithLabelValues("dice", "win")); v != 1 {
		t.Fatalf("finished = %v", v)
	}
	if n := testutil.CollectAndCount(m.activeGames); n != 0 {
		t.Fatalf("active gauge has %d series", n)
	}
}

func TestObservePersistAndUpdates(t *testing.T) {
	m, _ := New(nil)
	m.ObservePersist("file", 3*time.Millisecond, nil)
	m.ObservePersist("file", time.Millisecond, errors.New("disk full"))
	if v := testutil.ToFloat64(m.persistTotal.WithLabelValues("file", "fail")); v != 1 {
		t.Fatalf("fail writes = %v", v)
	}
	if n := testutil.CollectAndCount(m.persistDuration); n != 1 {
		t.Fatalf("histogram series = %d", n)
	}

	m.ObserveUpdate("quiz", 10*time.Millisecond, 2, nil)
	m.RateLimited()
	if v := testutil.ToFloat64(m.messagesSent); v != 2 {
		t.Fatalf("messages = %v", v)
	}
	if v := testutil.ToFloat64(m.rateLimited); v != 1 {
		t.Fatalf("rate limited = %v", v)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.GameStarted("riddle")
	m.GameFinished("riddle", "resolved", 1)
	m.ChancePlayed("coin", "win", 2)
	m.ObservePersist("file", time.Second, nil)
	m.ObserveUpdate("start", time.Second, 1, nil)
	m.RateLimited()
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestServerExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m.GameStarted("word-guess")

	srv := NewServer("127.0.0.1:0", "", reg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `quizbot_games_started_total{game="word-guess"} 1`) {
		t.Fatalf("missing game counter in:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatal("missing runtime collector")
	}
}
