package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/matzehuels/racksizer/pkg/session"
)

// Cache backends selectable with RACKSIZER_CACHE.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Addr        string        // RACKSIZER_ADDR, default ":8080"
	CatalogPath string        // RACKSIZER_CATALOG, empty uses the built-in catalog
	Cache       string        // RACKSIZER_CACHE: none, file or redis (default none)
	CacheDir    string        // RACKSIZER_CACHE_DIR, for the file backend
	RedisAddr   string        // RACKSIZER_REDIS_ADDR, default "localhost:6379"
	RedisPass   string        // RACKSIZER_REDIS_PASSWORD
	RedisDB     int           // RACKSIZER_REDIS_DB
	CacheTTL    time.Duration // RACKSIZER_CACHE_TTL seconds, 0 keeps the per-stage TTLs
	LogLevel    log.Level     // RACKSIZER_LOG_LEVEL, default info
	LogFormat   string        // RACKSIZER_LOG_FORMAT: text or json
	RunTTL      time.Duration // RACKSIZER_RUN_TTL seconds, default 3600
	Timeout     time.Duration // RACKSIZER_REQUEST_TIMEOUT seconds, default 60
}

// LoadConfig reads the configuration from the environment. Variables from
// envFile are loaded first when the file exists; variables already set in
// the environment win.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	cfg := Config{
		Addr:        getEnv("RACKSIZER_ADDR", ":8080"),
		CatalogPath: os.Getenv("RACKSIZER_CATALOG"),
		Cache:       getEnv("RACKSIZER_CACHE", CacheNone),
		CacheDir:    os.Getenv("RACKSIZER_CACHE_DIR"),
		RedisAddr:   getEnv("RACKSIZER_REDIS_ADDR", "localhost:6379"),
		RedisPass:   os.Getenv("RACKSIZER_REDIS_PASSWORD"),
		LogFormat:   getEnv("RACKSIZER_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("RACKSIZER_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = getEnvSeconds("RACKSIZER_CACHE_TTL", 0); err != nil {
		return Config{}, err
	}
	if cfg.RunTTL, err = getEnvSeconds("RACKSIZER_RUN_TTL", session.DefaultTTL); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = getEnvSeconds("RACKSIZER_REQUEST_TIMEOUT", time.Minute); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = log.InfoLevel
	if v := os.Getenv("RACKSIZER_LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = log.ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("RACKSIZER_LOG_LEVEL: %w", err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	switch c.Cache {
	case CacheNone, CacheFile, CacheRedis:
	default:
		return fmt.Errorf("RACKSIZER_CACHE must be none, file or redis, got %q", c.Cache)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("RACKSIZER_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.Cache == CacheFile && c.CacheDir == "" {
		return fmt.Errorf("RACKSIZER_CACHE_DIR is required for the file cache")
	}
	return nil
}

// NewLogger builds the server logger for the configured level and format.
func (c Config) NewLogger() *log.Logger {
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           c.LogLevel,
		Prefix:          "racksizer",
	}
	if c.LogFormat == "json" {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(os.Stderr, opts)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func getEnvSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	if os.Getenv(key) == "" {
		return defaultValue, nil
	}
	n, err := getEnvInt(key, 0)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
