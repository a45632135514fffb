package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestRunMigrationsSQLite(t *testing.T) {
	cfg := Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "quiz.db")}
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// second run is a no-op
	if err := RunMigrations(cfg); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM profiles`); err != nil {
		t.Fatalf("profiles table missing: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table, got %d rows", count)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Driver: "sqlite"}).Validate(); err == nil {
		t.Fatal("expected error for sqlite without path")
	}
	if err := (Config{Driver: "mysql"}).Validate(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if err := (Config{Host: "db", Name: "quiz"}).Validate(); err != nil {
		t.Fatalf("postgres default should validate: %v", err)
	}
}

func TestMigrationURL(t *testing.T) {
	pg := Config{Host: "db", Port: "5432", User: "quiz", Password: "p@ss", Name: "quiz"}
	got := pg.MigrationURL()
	if !strings.HasPrefix(got, "postgres://quiz:p%40ss@db:5432/quiz") || !strings.HasSuffix(got, "sslmode=disable") {
		t.Fatalf("unexpected url %s", got)
	}
	lite := Config{Driver: "sqlite", Path: "/tmp/q.db"}
	if lite.MigrationURL() != "sqlite:///tmp/q.db" {
		t.Fatalf("unexpected sqlite url %s", lite.MigrationURL())
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "000002_b.up.sql" {
		t.Fatalf("selectApplied = %v", got)
	}
	if selectApplied(files, 3, 3) != nil {
		t.Fatal("expected nothing applied")
	}
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := ConnectRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}
