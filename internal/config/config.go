package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	AppName             string
	Port                string
	LogLevel            slog.Level
	SQLitePath          string
	MigrationsPath      string
	SeedDefaultData     bool
	SourceProfilesPath  string
	QueuePollingEnabled bool
	QueuePollingMinutes int
	// QueuePollingSchedule is a cron expression; it wins over the minutes.
	QueuePollingSchedule string
	QueueSelfChain       bool
	JWTSecret            string
	CORSAllowOrigins     string
	ScrapingAPIURL       string
	ScrapingAPIKey       string
	BrowserBypass        bool
	LLMAPIURL            string
	LLMAPIKey            string
	LLMModel             string
	NotifyWebhookURL     string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		AppName:              getEnv("APP_NAME", "manga-nexus-hub"),
		Port:                 getEnv("APP_PORT", "8080"),
		SQLitePath:           getEnv("SQLITE_PATH", "./data/app.sqlite"),
		MigrationsPath:       getEnv("MIGRATIONS_PATH", "./migrations"),
		SeedDefaultData:      getEnvAsBool("SEED_DEFAULT_DATA", true),
		SourceProfilesPath:   getEnv("SOURCE_PROFILES_PATH", "./sources"),
		QueuePollingEnabled:  getEnvAsBool("QUEUE_POLLING_ENABLED", false),
		QueuePollingMinutes:  getEnvAsInt("QUEUE_POLLING_MINUTES", 5),
		QueuePollingSchedule: strings.TrimSpace(os.Getenv("QUEUE_POLLING_SCHEDULE")),
		QueueSelfChain:       getEnvAsBool("QUEUE_SELF_CHAIN_ENABLED", true),
		JWTSecret:            strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
		CORSAllowOrigins:     getEnv("CORS_ALLOW_ORIGINS", "*"),
		ScrapingAPIURL:       getEnv("SCRAPING_API_URL", "https://app.scrapingbee.com/api/v1/"),
		ScrapingAPIKey:       strings.TrimSpace(os.Getenv("SCRAPING_API_KEY")),
		BrowserBypass:        getEnvAsBool("BROWSER_BYPASS_ENABLED", false),
		LLMAPIURL:            getEnv("LLM_API_URL", "https://api.openai.com/v1/chat/completions"),
		LLMAPIKey:            strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		LLMModel:             getEnv("LLM_MODEL", "gpt-4o-mini"),
		NotifyWebhookURL:     strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL")),
	}

	if cfg.QueuePollingMinutes <= 0 {
		cfg.QueuePollingMinutes = 5
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "INFO"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q, expected DEBUG|INFO|WARN|ERROR", raw)
	}
}

func getEnv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
