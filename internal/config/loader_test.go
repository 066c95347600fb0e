package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearSchedulerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SCHEDULER_CONFIG_FILE",
		"SCHEDULER_HTTP_PORT",
		"SCHEDULER_SQLITE_DSN",
		"SCHEDULER_SESSION_TTL",
		"SCHEDULER_CALENDAR_URL",
		"SCHEDULER_CALENDAR_TIMEOUT",
		"SCHEDULER_POLL_SPEC",
		"SCHEDULER_TIMEZONE",
	} {
		// t.Setenv registers cleanup so the original value comes back.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_CALENDAR_URL", "http://calendar.internal")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:scheduler.db?_foreign_keys=on" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Fatalf("unexpected default session TTL: %v", cfg.SessionTTL)
		}
		if cfg.CalendarTimeout != 10*time.Second {
			t.Fatalf("unexpected default calendar timeout: %v", cfg.CalendarTimeout)
		}
		if cfg.PollSpec != "@every 1m" {
			t.Fatalf("unexpected default poll spec: %q", cfg.PollSpec)
		}
		if cfg.Timezone != "UTC" {
			t.Fatalf("unexpected default timezone: %q", cfg.Timezone)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearSchedulerEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "必須の環境変数が設定されていません: SCHEDULER_CALENDAR_URL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_CALENDAR_URL", "http://calendar.internal")
		t.Setenv("SCHEDULER_HTTP_PORT", "not-a-port")
		t.Setenv("SCHEDULER_SESSION_TTL", "-1h")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for malformed values")
		}
		expected := "環境変数の値が不正です: SCHEDULER_HTTP_PORT, SCHEDULER_SESSION_TTL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses overrides", func(t *testing.T) {
		clearSchedulerEnv(t)
		t.Setenv("SCHEDULER_CALENDAR_URL", "http://calendar.internal")
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_SESSION_TTL", "2h")
		t.Setenv("SCHEDULER_CALENDAR_TIMEOUT", "3s")
		t.Setenv("SCHEDULER_POLL_SPEC", "@every 30s")
		t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SessionTTL != 2*time.Hour {
			t.Fatalf("expected 2h TTL, got %v", cfg.SessionTTL)
		}
		if cfg.CalendarTimeout != 3*time.Second {
			t.Fatalf("expected 3s timeout, got %v", cfg.CalendarTimeout)
		}
		if cfg.PollSpec != "@every 30s" {
			t.Fatalf("unexpected poll spec: %q", cfg.PollSpec)
		}
		if cfg.Timezone != "Asia/Tokyo" {
			t.Fatalf("unexpected timezone: %q", cfg.Timezone)
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {

	t.Run("file values feed defaults and env overrides win", func(t *testing.T) {
		clearSchedulerEnv(t)

		path := filepath.Join(t.TempDir(), "scheduler.yaml")
		content := []byte(`http_port: 9000
sqlite_dsn: "file:dispatch.db?_foreign_keys=on"
session:
  ttl: 12h
calendar:
  base_url: "http://calendar.file"
  timeout: 5s
poll_spec: "@every 2m"
timezone: "Asia/Tokyo"
`)
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		t.Setenv("SCHEDULER_CONFIG_FILE", path)
		t.Setenv("SCHEDULER_HTTP_PORT", "9100")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9100 {
			t.Fatalf("env override should win, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:dispatch.db?_foreign_keys=on" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("unexpected TTL: %v", cfg.SessionTTL)
		}
		if cfg.CalendarBaseURL != "http://calendar.file" {
			t.Fatalf("unexpected calendar URL: %q", cfg.CalendarBaseURL)
		}
		if cfg.CalendarTimeout != 5*time.Second {
			t.Fatalf("unexpected calendar timeout: %v", cfg.CalendarTimeout)
		}
		if cfg.PollSpec != "@every 2m" {
			t.Fatalf("unexpected poll spec: %q", cfg.PollSpec)
		}
	})

	t.Run("rejects malformed files", func(t *testing.T) {
		clearSchedulerEnv(t)

		path := filepath.Join(t.TempDir(), "scheduler.yaml")
		if err := os.WriteFile(path, []byte("http_port: [broken"), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		t.Setenv("SCHEDULER_CONFIG_FILE", path)

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for malformed file")
		}
	})
}
