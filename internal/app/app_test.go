package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/quizbot/core/bootstrap"
	coreconfig "github.com/m3rciful/quizbot/core/config"
	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/internal/game"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admin_id: 77
store:
  driver: memory
game:
  speed_questions: 3
  speed_seconds: 45
  session_idle_minutes: -1
admin_ids: [5]
metrics:
  listen: "127.0.0.1:0"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CoreConfig().Telegram.Token != "123:abc" || cfg.Store.Driver != coreconfig.StoreMemory {
		t.Fatalf("core = %+v", cfg.Config)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[1] != 77 {
		t.Fatalf("admins = %v", cfg.AdminIDs)
	}
	gs := cfg.GameSettings()
	if gs.SpeedQuestions != 3 || gs.SpeedDuration != 45*time.Second || gs.IdleTimeout != 0 {
		t.Fatalf("game = %+v", gs)
	}
	if gs.WordHints != 0 {
		t.Fatalf("unset word hints should pass through as zero, got %d", gs.WordHints)
	}
	if cfg.JanitorInterval() != time.Minute {
		t.Fatalf("janitor = %v", cfg.JanitorInterval())
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]string{
		"redis without addr":  "telegram:\n  token: x\nstore:\n  driver: redis\n",
		"negative game":       "telegram:\n  token: x\ngame:\n  word_attempts: -2\n",
		"postgres without db": "telegram:\n  token: x\nstore:\n  driver: postgres\n",
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func memoryConfig() *Config {
	cfg := &Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Store.Driver = coreconfig.StoreMemory
	cfg.Metrics.Listen = "127.0.0.1:0"
	cfg.AdminIDs = []int64{1}
	return cfg
}

func noLogger() Deps {
	return Deps{Bootstrap: bootstrap.Options{LoggerInit: func(*coreconfig.Config) error { return nil }}}
}

func TestBootstrapWiresRoutes(t *testing.T) {
	ctx := context.Background()
	a, err := Bootstrap(ctx, memoryConfig(), noLogger())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	cmds := len(opts.Registry.Commands())
	if cmds == 0 || len(opts.Routes) != cmds+2 {
		t.Fatalf("routes = %d, commands = %d", len(opts.Routes), cmds)
	}
	if len(opts.Middlewares) == 0 || opts.OnStart == nil || opts.OnStop == nil {
		t.Fatalf("incomplete run options")
	}

	if _, err := a.Games().Start(ctx, 42, game.KindRiddle, game.Selector{}); err != nil {
		t.Fatalf("start riddle: %v", err)
	}
	if kind, ok := a.Games().Active(42); !ok || kind != game.KindRiddle {
		t.Fatalf("active = %q %v", kind, ok)
	}

	if err := opts.OnStart(ctx, tg.Runtime{}); err != nil {
		t.Fatalf("on start: %v", err)
	}
	if err := opts.OnStop(ctx, tg.Runtime{}); err != nil {
		t.Fatalf("on stop: %v", err)
	}
}

func TestMetricsServedAfterStart(t *testing.T) {
	ctx := context.Background()
	a, err := Bootstrap(ctx, memoryConfig(), noLogger())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := a.Games().Play(ctx, 9, game.ChanceDice, ""); err != nil {
		t.Fatalf("play: %v", err)
	}

	if _, ok := a.Store().Get(9); !ok {
		t.Fatalf("profile not created by play")
	}

	rec := httptest.NewRecorder()
	a.metricsServer.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `quizbot_games_started_total{game="dice"} 1`) {
		t.Fatalf("metrics body missing dice counter:\n%s", rec.Body.String())
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}
