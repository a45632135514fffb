package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

const (
	// StoreFile keeps profiles in a JSON document on disk.
	StoreFile = "file"
	// StorePostgres keeps profiles in PostgreSQL.
	StorePostgres = "postgres"
	// StoreSQLite keeps profiles in an SQLite file.
	StoreSQLite = "sqlite"
	// StoreRedis keeps the profile document under a Redis key.
	StoreRedis = "redis"
	// StoreMemory keeps profiles in memory only.
	StoreMemory = "memory"
)

// StoreConfig selects where player profiles live.
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_DRIVER"`
	// Path is the JSON document for the file driver.
	Path string `yaml:"path" envconfig:"STORE_PATH"`
	// Timezone decides the local date used for daily streaks.
	Timezone string `yaml:"timezone" envconfig:"STORE_TIMEZONE"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Read(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Read fills out from a .env file next to the working directory, the YAML
// file at path and the process environment, in that order of precedence
// from lowest to highest. Variables already set are never overwritten by
// .env.
func Read(path string, out any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Location resolves the store timezone, defaulting to the host zone.
func (s StoreConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Normalize validates cfg and fills in defaults. String enums are
// trimmed and lowercased in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is required")
	}
	for _, step := range []func() error{
		cfg.normalizeRunMode,
		cfg.RateLimit.normalize,
		cfg.Store.normalize,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (cfg *Config) normalizeRunMode() error {
	mode := lower(cfg.Telegram.RunMode)
	switch mode {
	case "", "polling", RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
		mode = RunModeLongpoll
	case RunModeWebhook:
		wh := cfg.Webhook
		var missing []string
		if strings.TrimSpace(wh.URL) == "" {
			missing = append(missing, "webhook.url")
		}
		if strings.TrimSpace(wh.Listen) == "" {
			missing = append(missing, "webhook.listen")
		}
		if wh.Port <= 0 {
			missing = append(missing, "webhook.port")
		}
		if len(missing) > 0 {
			return fmt.Errorf("webhook mode needs %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = mode
	return nil
}

func (r *RateLimitConfig) normalize() error {
	for i, v := range r.ExcludeUpdates {
		switch key := lower(v); key {
		case "":
		case UpdateCallback, UpdateMessage, UpdateInlineQuery:
			r.ExcludeUpdates[i] = key
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
	}
	return nil
}

func (s *StoreConfig) normalize() error {
	switch driver := lower(s.Driver); driver {
	case "", StoreFile:
		s.Driver = StoreFile
		if strings.TrimSpace(s.Path) == "" {
			s.Path = "user_data.json"
		}
	case StorePostgres, StoreSQLite, StoreRedis, StoreMemory:
		s.Driver = driver
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: file, postgres, sqlite, redis, memory", s.Driver)
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("invalid store.timezone %q: %w", s.Timezone, err)
	}
	return nil
}
