// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/roach88/tableside/internal/views"
)

type Config struct {
	Env         string
	APIURL      string
	StatePath   string
	StateKey    string
	HTTPTimeout time.Duration

	PollChef     time.Duration
	PollKitchen  time.Duration
	PollCustomer time.Duration
	PollHistory  time.Duration
}

// Load reads .env files (missing files are ignored; variables already set
// in the environment win) and builds the config.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("env file not loaded", "file", f, "error", err)
		}
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() Config {
	cfg := Config{
		Env:         getEnv("TABLESIDE_ENV", "development"),
		APIURL:      strings.TrimRight(getEnv("TABLESIDE_API_URL", "http://localhost:8000/api"), "/"),
		StatePath:   getEnv("TABLESIDE_STATE_DB", "tableside.db"),
		StateKey:    getEnv("TABLESIDE_STATE_KEY", ""),
		HTTPTimeout: getEnvDuration("TABLESIDE_HTTP_TIMEOUT", 15*time.Second),

		PollChef:     getEnvDuration("TABLESIDE_POLL_CHEF", views.ViewChef.DefaultInterval()),
		PollKitchen:  getEnvDuration("TABLESIDE_POLL_KITCHEN", views.ViewKitchen.DefaultInterval()),
		PollCustomer: getEnvDuration("TABLESIDE_POLL_CUSTOMER", views.ViewCustomer.DefaultInterval()),
		PollHistory:  getEnvDuration("TABLESIDE_POLL_HISTORY", views.ViewHistory.DefaultInterval()),
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	return cfg
}

// PollInterval returns the configured cadence for a view.
func (c Config) PollInterval(v views.View) time.Duration {
	var d time.Duration
	switch v {
	case views.ViewChef:
		d = c.PollChef
	case views.ViewKitchen:
		d = c.PollKitchen
	case views.ViewCustomer:
		d = c.PollCustomer
	case views.ViewHistory:
		d = c.PollHistory
	}
	if d <= 0 {
		return v.DefaultInterval()
	}
	return d
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", value, "default", fallback)
		return fallback
	}
	return d
}
