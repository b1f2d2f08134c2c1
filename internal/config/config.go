package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string
	HTTPAddr       string
	Store          string // "postgres" or "memory"
	DBDSN          string
	MigrationsPath string

	RedisAddr string // empty: process-local bulk guard

	TelegramToken  string // empty: log-only notification sink
	TelegramChatID int64

	CalendarTimeout   time.Duration
	CalendarTokenJSON string // empty: external busy feed disabled
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables win either way.
	if err := godotenv.Load(".env"); err == nil {
		log.Println("loaded configuration from .env file")
	}

	cfg := &Config{
		Environment:    os.Getenv("ENV"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		Store:          os.Getenv("STORE"),
		DBDSN:          os.Getenv("DB_DSN"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),

		CalendarTokenJSON: os.Getenv("GOOGLE_CALENDAR_TOKEN_JSON"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Store == "" {
		cfg.Store = "postgres"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	cfg.CalendarTimeout = 3 * time.Second
	if ms := os.Getenv("CALENDAR_TIMEOUT_MS"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil {
			return nil, fmt.Errorf("invalid CALENDAR_TIMEOUT_MS: %w", err)
		}
		cfg.CalendarTimeout = time.Duration(n) * time.Millisecond
	}

	switch cfg.Store {
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required when STORE=postgres")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	return cfg, nil
}
