package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDevmanAPIURL  = "https://dvmn.org/api"
	defaultReconnectSecs = 5
	defaultReadSecs      = 120
	defaultRetentionDays = 30
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DevmanAPIToken       string
	DevmanAPIURL         string
	TelegramToken        string
	NotificationsChatID  int64
	ReconnectTimeout     time.Duration
	PollReadTimeout      time.Duration
	LogLevel             string
	TelegramLogLevel     string
	Environment          string
	DatabaseURL          string // empty disables the delivery journal
	JournalRetention     time.Duration
	CronSpecJournalPrune string
	CronSpecHeartbeat    string
	EnableBotCommands    bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load does not override variables that are already set.
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.DevmanAPIToken = getenv("DEVMAN_API_TOKEN")
	if cfg.DevmanAPIToken == "" {
		return nil, fmt.Errorf("DEVMAN_API_TOKEN is not set")
	}

	cfg.TelegramToken = getenv("TELEGRAM_API_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_API_TOKEN is not set")
	}

	chatIDStr := getenv("NOTIFICATIONS_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("NOTIFICATIONS_CHAT_ID is not set")
	}
	cfg.NotificationsChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFICATIONS_CHAT_ID: %w", err)
	}

	cfg.DevmanAPIURL = getenv("DEVMAN_API_URL")
	if cfg.DevmanAPIURL == "" {
		cfg.DevmanAPIURL = DefaultDevmanAPIURL
	}

	reconnectSecs, err := positiveInt(getenv, "RECONNECT_TIMEOUT", defaultReconnectSecs)
	if err != nil {
		return nil, err
	}
	cfg.ReconnectTimeout = time.Duration(reconnectSecs) * time.Second

	readSecs, err := positiveInt(getenv, "POLL_READ_TIMEOUT", defaultReadSecs)
	if err != nil {
		return nil, err
	}
	cfg.PollReadTimeout = time.Duration(readSecs) * time.Second

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.TelegramLogLevel = strings.ToLower(getenv("TELEGRAM_LOG_LEVEL"))
	if cfg.TelegramLogLevel == "" {
		cfg.TelegramLogLevel = "error"
	}

	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.DatabaseURL = getenv("DATABASE_URL")

	retentionDays, err := positiveInt(getenv, "JOURNAL_RETENTION_DAYS", defaultRetentionDays)
	if err != nil {
		return nil, err
	}
	cfg.JournalRetention = time.Duration(retentionDays) * 24 * time.Hour

	cfg.CronSpecJournalPrune = getenv("CRON_SPEC_JOURNAL_PRUNE")
	if cfg.CronSpecJournalPrune == "" {
		cfg.CronSpecJournalPrune = "0 3 * * *" // Default: 03:00 daily
	}

	cfg.CronSpecHeartbeat = getenv("CRON_SPEC_HEARTBEAT")
	if cfg.CronSpecHeartbeat == "" {
		cfg.CronSpecHeartbeat = "0 * * * *" // Default: hourly
	}

	cfg.EnableBotCommands = true
	if v := getenv("ENABLE_BOT_COMMANDS"); v != "" {
		cfg.EnableBotCommands, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENABLE_BOT_COMMANDS: %w", err)
		}
	}

	return cfg, nil
}

func positiveInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, n)
	}
	return n, nil
}
