package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL    string `yaml:"database_url"`
	Port           string `yaml:"port"`
	PrometheusPort string `yaml:"prometheus_port"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	TelegramToken  string `yaml:"telegram_token"`
	AdminToken     string `yaml:"admin_token"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// SchedulerConfig holds the cron specs of the periodic jobs
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Settle runs at minute 59 so every whole-hour zone passes 23:59 local.
	Settle   string `yaml:"settle"`
	Scoring  string `yaml:"scoring"`
	Snapshot string `yaml:"snapshot"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, a .env file and finally environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           "8080",
		PrometheusPort: "9090",
		LogLevel:       "info",
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Settle:   "59 * * * *",
			Scoring:  "CRON_TZ=Asia/Shanghai 5 0 * * *",
			Snapshot: "CRON_TZ=Asia/Shanghai 10 0 * * *",
		},
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.PrometheusPort = getEnvOrDefault("PROMETHEUS_PORT", cfg.PrometheusPort)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnvOrDefault("LOG_FILE", cfg.LogFile)
	cfg.TelegramToken = getEnvOrDefault("TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.AdminToken = getEnvOrDefault("ADMIN_TOKEN", cfg.AdminToken)
	cfg.Scheduler.Enabled = getEnvBool("SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.Settle = getEnvOrDefault("SETTLE_SCHEDULE", cfg.Scheduler.Settle)
	cfg.Scheduler.Scoring = getEnvOrDefault("SCORING_SCHEDULE", cfg.Scheduler.Scoring)
	cfg.Scheduler.Snapshot = getEnvOrDefault("SNAPSHOT_SCHEDULE", cfg.Scheduler.Snapshot)

	// Required settings
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
