package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the dispatch service. Values come
// from an optional YAML file named by SCHEDULER_CONFIG_FILE, with individual
// environment variables overriding file entries.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	SessionTTL      time.Duration
	CalendarBaseURL string
	CalendarTimeout time.Duration
	PollSpec        string
	Timezone        string
}

type fileConfig struct {
	HTTPPort  int    `yaml:"http_port"`
	SQLiteDSN string `yaml:"sqlite_dsn"`
	Session   struct {
		TTL string `yaml:"ttl"`
	} `yaml:"session"`
	Calendar struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"calendar"`
	PollSpec string `yaml:"poll_spec"`
	Timezone string `yaml:"timezone"`
}

// Load assembles configuration from the optional YAML file and the process
// environment. Required values are validated and reported with localized error
// messages.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:scheduler.db?_foreign_keys=on",
		SessionTTL:      24 * time.Hour,
		CalendarTimeout: 10 * time.Second,
		PollSpec:        "@every 1m",
		Timezone:        "UTC",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SCHEDULER_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if baseURL := strings.TrimSpace(os.Getenv("SCHEDULER_CALENDAR_URL")); baseURL != "" {
		cfg.CalendarBaseURL = baseURL
	}
	if cfg.CalendarBaseURL == "" {
		missing = append(missing, "SCHEDULER_CALENDAR_URL")
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("SCHEDULER_CALENDAR_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "SCHEDULER_CALENDAR_TIMEOUT")
		} else {
			cfg.CalendarTimeout = timeout
		}
	}

	if spec := strings.TrimSpace(os.Getenv("SCHEDULER_POLL_SPEC")); spec != "" {
		cfg.PollSpec = spec
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}

	if file.HTTPPort > 0 {
		cfg.HTTPPort = file.HTTPPort
	}
	if dsn := strings.TrimSpace(file.SQLiteDSN); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if ttlValue := strings.TrimSpace(file.Session.TTL); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("設定ファイルの値が不正です: session.ttl")
		}
		cfg.SessionTTL = ttl
	}
	if baseURL := strings.TrimSpace(file.Calendar.BaseURL); baseURL != "" {
		cfg.CalendarBaseURL = baseURL
	}
	if timeoutValue := strings.TrimSpace(file.Calendar.Timeout); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			return fmt.Errorf("設定ファイルの値が不正です: calendar.timeout")
		}
		cfg.CalendarTimeout = timeout
	}
	if spec := strings.TrimSpace(file.PollSpec); spec != "" {
		cfg.PollSpec = spec
	}
	if tz := strings.TrimSpace(file.Timezone); tz != "" {
		cfg.Timezone = tz
	}

	return nil
}
