package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONFIG_FILE", "")

	if _, err := Load(); err == nil {
		t.Fatalf("Load: want error without DATABASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fitrooms")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("SETTLE_SCHEDULE", "")
	t.Setenv("SCHEDULER_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Scheduler.Settle != "59 * * * *" || !cfg.Scheduler.Enabled {
		t.Fatalf("defaults: got=%+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database_url: postgres://yaml/db\nport: \"7000\"\nscheduler:\n  enabled: false\n  snapshot: \"0 1 * * *\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "9000")
	t.Setenv("SNAPSHOT_SCHEDULE", "")
	t.Setenv("SCHEDULER_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://yaml/db" {
		t.Fatalf("database url: want=postgres://yaml/db got=%s", cfg.DatabaseURL)
	}
	if cfg.Port != "9000" {
		t.Fatalf("port: env should win, want=9000 got=%s", cfg.Port)
	}
	if cfg.Scheduler.Enabled || cfg.Scheduler.Snapshot != "0 1 * * *" {
		t.Fatalf("scheduler: got=%+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Settle != "59 * * * *" {
		t.Fatalf("unset yaml keys keep defaults: got=%s", cfg.Scheduler.Settle)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://fit:secret@db:5432/fitrooms?sslmode=disable", "postgres://fit:xxxxx@db:5432/fitrooms?sslmode=disable"},
		{"postgres://db/fitrooms", "postgres://db/fitrooms"},
		{"host=db user=fit password=secret", "postgres (dsn)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Fatalf("redact %q: want=%s got=%s", tt.in, tt.want, got)
		}
	}
}
