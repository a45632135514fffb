package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  run_mode: polling
store:
  timezone: Europe/Moscow
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Store.Driver != StoreFile || cfg.Store.Path != "user_data.json" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	loc, err := cfg.Store.Location()
	if err != nil || loc.String() != "Europe/Moscow" {
		t.Fatalf("location = %v, %v", loc, err)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("STORE_DRIVER", "Redis")
	path := writeConfig(t, "telegram:\n  token: \"123:yaml\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Store.Driver != StoreRedis {
		t.Fatalf("driver = %q", cfg.Store.Driver)
	}
}

func TestNormalizeErrors(t *testing.T) {
	cases := map[string]Config{
		"token":    {},
		"run_mode": {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook":  {Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook}},
		"exclude":  {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
		"driver":   {Telegram: TelegramConfig{Token: "t"}, Store: StoreConfig{Driver: "mongo"}},
		"timezone": {Telegram: TelegramConfig{Token: "t"}, Store: StoreConfig{Timezone: "Mars/Olympus"}},
	}
	for name, cfg := range cases {
		cfg := cfg
		if err := Normalize(&cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNormalizeLowercasesExclusions(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback "}},
	}
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("exclude = %v", cfg.RateLimit.ExcludeUpdates)
	}
}

func TestReadMissingFile(t *testing.T) {
	var cfg Config
	err := Read(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestStoreLocationDefaultsToLocal(t *testing.T) {
	loc, err := StoreConfig{}.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("location = %v, %v", loc, err)
	}
}
