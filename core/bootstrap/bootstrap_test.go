package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/internal/profile"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{Store: coreconfig.StoreConfig{Driver: coreconfig.StoreFile, Path: path}},
		LoggerInit: noLogger,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	fb, ok := res.Backend.(*profile.FileBackend)
	if !ok || fb.Path() != path {
		t.Fatalf("backend = %#v", res.Backend)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunSQLiteBackend(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{Store: coreconfig.StoreConfig{Driver: coreconfig.StoreSQLite}},
		Database:   coredatabase.Config{Path: filepath.Join(t.TempDir(), "quiz.db")},
		LoggerInit: noLogger,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()
	if res.DB == nil || res.Backend.Name() != "sql.sqlite" {
		t.Fatalf("backend = %s", res.Backend.Name())
	}
	store, err := profile.Open(context.Background(), profile.Options{Backend: res.Backend})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.ApplyDelta(context.Background(), 5, profile.FieldScore, 3); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestRunRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{Store: coreconfig.StoreConfig{Driver: coreconfig.StoreRedis}},
		Redis:      coredatabase.RedisConfig{Addr: mr.Addr(), Key: "test:profiles"},
		LoggerInit: noLogger,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()
	if res.Redis == nil || res.Backend.Name() != "redis" {
		t.Fatalf("backend = %s", res.Backend.Name())
	}
}

func TestRunRejectsUnknownDriver(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{Store: coreconfig.StoreConfig{Driver: "mongo"}},
		LoggerInit: noLogger,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected nil config error")
	}
}
