/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory, if present (godotenv)
  3. Process environment
  4. Command-line flags (-port, -db, -catalog)

VARIABLES:
  PORT, DB_PATH, CATALOG_PATH, CORS_ORIGINS (comma separated),
  LOG_LEVEL, LOG_FORMAT,
  GEMINI_API_KEY (falls back to API_KEY), GEMINI_MODEL, GEMINI_BASE_URL,
  SUGGESTION_URL, ADVISOR_TIMEOUT,
  REDIS_ADDR, SUGGESTION_CACHE_TTL,
  RATE_LIMIT_CAPACITY, RATE_LIMIT_WINDOW,
  SESSION_TTL, SESSION_SWEEP_SCHEDULE
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config is the full server configuration.
type Config struct {
	Port        string
	DBPath      string
	CatalogPath string
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	SuggestionURL  string
	AdvisorTimeout time.Duration

	RedisAddr          string
	SuggestionCacheTTL time.Duration

	RateLimitCapacity int
	RateLimitWindow   time.Duration

	SessionTTL           time.Duration
	SessionSweepSchedule string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:                 "8080",
		DBPath:               "proposals.db",
		CORSOrigins:          []string{"http://localhost:3000", "http://localhost:5173"},
		LogLevel:             "info",
		LogFormat:            "text",
		GeminiModel:          "gemini-2.5-flash",
		GeminiBaseURL:        "https://generativelanguage.googleapis.com",
		AdvisorTimeout:       30 * time.Second,
		SuggestionCacheTTL:   15 * time.Minute,
		RateLimitCapacity:    10,
		RateLimitWindow:      time.Minute,
		SessionTTL:           2 * time.Hour,
		SessionSweepSchedule: "@every 10m",
	}
}

// Load reads an optional .env file and then the environment on top of the
// defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("PORT", &cfg.Port)
	str("DB_PATH", &cfg.DBPath)
	str("CATALOG_PATH", &cfg.CatalogPath)
	if v := strings.TrimSpace(getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	str("API_KEY", &cfg.GeminiAPIKey)
	str("GEMINI_API_KEY", &cfg.GeminiAPIKey)
	str("GEMINI_MODEL", &cfg.GeminiModel)
	str("GEMINI_BASE_URL", &cfg.GeminiBaseURL)
	str("SUGGESTION_URL", &cfg.SuggestionURL)
	dur("ADVISOR_TIMEOUT", &cfg.AdvisorTimeout)

	str("REDIS_ADDR", &cfg.RedisAddr)
	dur("SUGGESTION_CACHE_TTL", &cfg.SuggestionCacheTTL)

	integer("RATE_LIMIT_CAPACITY", &cfg.RateLimitCapacity)
	dur("RATE_LIMIT_WINDOW", &cfg.RateLimitWindow)

	dur("SESSION_TTL", &cfg.SessionTTL)
	str("SESSION_SWEEP_SCHEDULE", &cfg.SessionSweepSchedule)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// BindFlags registers the command-line overrides on fs. Call fs.Parse
// afterwards; the flags write straight into cfg.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.CatalogPath, "catalog", c.CatalogPath, "Catalog file (YAML or JSON) to seed the database with")
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	var errs []error

	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.AdvisorTimeout <= 0 {
		errs = append(errs, errors.New("advisor timeout must be positive"))
	}
	if c.SuggestionCacheTTL < 0 {
		errs = append(errs, errors.New("suggestion cache ttl must not be negative"))
	}
	if c.RateLimitCapacity <= 0 {
		errs = append(errs, errors.New("rate limit capacity must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if _, err := cron.ParseStandard(c.SessionSweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid session sweep schedule %q: %w", c.SessionSweepSchedule, err))
	}

	return errors.Join(errs...)
}

// HasGemini reports whether a Gemini key is configured.
func (c Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
