package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/internal/game"
)

// GameConfig tunes game sizes and session lifetime.
type GameConfig struct {
	SpeedQuestions     int `yaml:"speed_questions" envconfig:"GAME_SPEED_QUESTIONS"`
	SpeedSeconds       int `yaml:"speed_seconds" envconfig:"GAME_SPEED_SECONDS"`
	MixedQuestions     int `yaml:"mixed_questions" envconfig:"GAME_MIXED_QUESTIONS"`
	WordAttempts       int `yaml:"word_attempts" envconfig:"GAME_WORD_ATTEMPTS"`
	WordHints          int `yaml:"word_hints" envconfig:"GAME_WORD_HINTS"`
	SessionIdleMinutes int `yaml:"session_idle_minutes" envconfig:"GAME_SESSION_IDLE_MINUTES"`
	JanitorSeconds     int `yaml:"janitor_seconds" envconfig:"GAME_JANITOR_SECONDS"`
}

// ContentConfig points at an external question bank; empty uses the
// embedded one.
type ContentConfig struct {
	Path string `yaml:"path" envconfig:"CONTENT_PATH"`
}

// MetricsConfig controls the Prometheus endpoint; an empty listen address
// disables it.
type MetricsConfig struct {
	Listen   string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Endpoint string `yaml:"endpoint" envconfig:"METRICS_ENDPOINT"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config      `yaml:"database"`
	Redis    coredatabase.RedisConfig `yaml:"redis"`
	Game     GameConfig               `yaml:"game"`
	Content  ContentConfig            `yaml:"content"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	// AdminIDs may run admin commands; telegram.admin_id is always included.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// LoadConfig reads the YAML file at path with environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Read(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	switch c.Store.Driver {
	case coreconfig.StorePostgres, coreconfig.StoreSQLite:
		db := c.Database
		db.Driver = c.Store.Driver
		if err := db.Validate(); err != nil {
			return err
		}
	case coreconfig.StoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when store.driver is 'redis'")
		}
	}
	g := c.Game
	for name, v := range map[string]int{
		"speed_questions": g.SpeedQuestions, "speed_seconds": g.SpeedSeconds,
		"mixed_questions": g.MixedQuestions, "word_attempts": g.WordAttempts,
		"word_hints": g.WordHints, "janitor_seconds": g.JanitorSeconds,
	} {
		if v < 0 {
			return fmt.Errorf("game.%s must be >= 0", name)
		}
	}
	if c.Telegram.AdminID != 0 && !containsID(c.AdminIDs, c.Telegram.AdminID) {
		c.AdminIDs = append(c.AdminIDs, c.Telegram.AdminID)
	}
	return nil
}

// GameSettings maps the YAML section onto game.Config. A negative idle
// timeout disables eviction; zero keeps the default.
func (c *Config) GameSettings() game.Config {
	g := c.Game
	cfg := game.Config{
		SpeedQuestions: g.SpeedQuestions,
		SpeedDuration:  time.Duration(g.SpeedSeconds) * time.Second,
		MixedQuestions: g.MixedQuestions,
		WordAttempts:   g.WordAttempts,
		WordHints:      g.WordHints,
		IdleTimeout:    game.DefaultConfig().IdleTimeout,
	}
	switch {
	case g.SessionIdleMinutes > 0:
		cfg.IdleTimeout = time.Duration(g.SessionIdleMinutes) * time.Minute
	case g.SessionIdleMinutes < 0:
		cfg.IdleTimeout = 0
	}
	return cfg
}

// JanitorInterval is how often idle sessions are swept.
func (c *Config) JanitorInterval() time.Duration {
	if c.Game.JanitorSeconds > 0 {
		return time.Duration(c.Game.JanitorSeconds) * time.Second
	}
	return time.Minute
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
