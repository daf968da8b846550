// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessCookieName   string
	CORSAllowedOrigins []string

	ListDefaultPageSize int
	ListMaxPageSize     int
	TipUpdateMode       string
	ReadRequiresAuth    bool

	IdempotencyTTL    time.Duration
	RateLimitStrategy string
	RateLimitWriteMax int
	RateLimitReadMax  int
	RateLimitWindow   time.Duration
	BodyLimitBytes    int64
	SecurityHeaders   bool
	SecurityHSTS      bool

	MigrateOnStart    bool
	SummaryCron       string
	Timezone          string
	WorkerConcurrency int
	WorkerMetricsAddr string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "gastro-rechner"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "gastro-rechner-frontend"),
		AccessCookieName:   valueOrDefault(k.String("ACCESS_COOKIE_NAME"), "access_token"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		ListDefaultPageSize: parseInt(k.String("LIST_DEFAULT_PAGE_SIZE"), 20),
		ListMaxPageSize:     parseInt(k.String("LIST_MAX_PAGE_SIZE"), 100),
		TipUpdateMode:       strings.ToLower(valueOrDefault(k.String("TIP_UPDATE_MODE"), "server")),
		ReadRequiresAuth:    parseBool(k.String("READ_REQUIRES_AUTH")),

		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitStrategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),
		RateLimitWriteMax: parseInt(k.String("RATE_LIMIT_WRITE_MAX"), 30),
		RateLimitReadMax:  parseInt(k.String("RATE_LIMIT_READ_MAX"), 300),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		BodyLimitBytes:    int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		SecurityHeaders:   parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		SecurityHSTS:      parseBool(k.String("SECURITY_HSTS")),

		MigrateOnStart:    parseBool(k.String("MIGRATE_ON_START")),
		SummaryCron:       valueOrDefault(k.String("SUMMARY_CRON"), "5 0 * * *"),
		Timezone:          valueOrDefault(k.String("APP_TIMEZONE"), "Europe/Berlin"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		WorkerMetricsAddr: valueOrDefault(k.String("WORKER_METRICS_ADDR"), ":9091"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 && cfg.IsProduction() {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes in production")
	}
	switch cfg.TipUpdateMode {
	case "server", "client":
	default:
		return nil, fmt.Errorf("TIP_UPDATE_MODE must be server or client, got %q", cfg.TipUpdateMode)
	}
	switch cfg.RateLimitStrategy {
	case "sliding", "fixed":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_STRATEGY must be sliding or fixed, got %q", cfg.RateLimitStrategy)
	}
	if cfg.ListMaxPageSize < 1 {
		cfg.ListMaxPageSize = 100
	}
	if cfg.ListDefaultPageSize < 1 || cfg.ListDefaultPageSize > cfg.ListMaxPageSize {
		cfg.ListDefaultPageSize = min(20, cfg.ListMaxPageSize)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
