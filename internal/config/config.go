package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

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
	JWTMaxShift        time.Duration
	CORSAllowedOrigins []string
	TenantHeader       string
	DefaultBusinessID  string
	RunMigrations      bool

	SaleSessionTTL      time.Duration
	CheckoutStepTimeout time.Duration
	CommitLockTTL       time.Duration
	IdempotencyTTL      time.Duration

	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int
	ReportCacheTTL      time.Duration
	SettingsCacheTTL    time.Duration

	RateLimit      string
	BodyLimitBytes int64
	AuditEnabled   bool

	ReceiptPrinterType   string
	ReceiptPrinterAddr   string
	ReceiptPrinterDevice string
	ReceiptWidth         int
	ReceiptMaxRetry      int
	PrinterTimeout       time.Duration
	PrinterBreakerMinReq int
	PrinterBreakerRatio  float64
	PrinterBreakerOpen   time.Duration
	WorkerConcurrency    int
	BusinessTimezone     string
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
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTMaxShift:        parseDuration(k.String("JWT_MAX_SHIFT"), "16h"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TenantHeader:       valueOrDefault(k.String("TENANT_HEADER"), "X-Business-ID"),
		DefaultBusinessID:  strings.TrimSpace(k.String("DEFAULT_BUSINESS_ID")),
		RunMigrations:      parseBool(k.String("RUN_MIGRATIONS")),

		SaleSessionTTL:      parseDuration(k.String("SALE_SESSION_TTL"), "12h"),
		CheckoutStepTimeout: parseDuration(k.String("CHECKOUT_STEP_TIMEOUT"), "10s"),
		CommitLockTTL:       parseDuration(k.String("COMMIT_LOCK_TTL"), "1m"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogDefaultLimit: parseInt(k.String("CATALOG_DEFAULT_LIMIT"), 20),
		CatalogMaxLimit:     parseInt(k.String("CATALOG_MAX_LIMIT"), 100),
		ReportCacheTTL:      parseDuration(k.String("REPORT_CACHE_TTL"), "1m"),
		SettingsCacheTTL:    parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),

		RateLimit:      valueOrDefault(k.String("RATE_LIMIT"), "600-M"),
		BodyLimitBytes: int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		AuditEnabled:   parseBoolDefault(k.String("AUDIT_ENABLED"), true),

		ReceiptPrinterType:   strings.ToLower(valueOrDefault(k.String("RECEIPT_PRINTER_TYPE"), "none")),
		ReceiptPrinterAddr:   strings.TrimSpace(k.String("RECEIPT_PRINTER_ADDR")),
		ReceiptPrinterDevice: strings.TrimSpace(k.String("RECEIPT_PRINTER_DEVICE")),
		ReceiptWidth:         parseInt(k.String("RECEIPT_WIDTH"), 48),
		ReceiptMaxRetry:      parseInt(k.String("RECEIPT_MAX_RETRY"), 5),
		PrinterTimeout:       parseDuration(k.String("RECEIPT_PRINTER_TIMEOUT"), "5s"),
		PrinterBreakerMinReq: parseInt(k.String("RECEIPT_BREAKER_MIN_REQUESTS"), 3),
		PrinterBreakerRatio:  parseFloat(k.String("RECEIPT_BREAKER_FAILURE_RATIO"), 0.5),
		PrinterBreakerOpen:   parseDuration(k.String("RECEIPT_BREAKER_OPEN_FOR"), "30s"),
		WorkerConcurrency:    parseInt(k.String("WORKER_CONCURRENCY"), 4),
		BusinessTimezone:     valueOrDefault(k.String("BUSINESS_TIMEZONE"), "America/Sao_Paulo"),
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
	if cfg.CheckoutStepTimeout <= 0 {
		return nil, errors.New("CHECKOUT_STEP_TIMEOUT must be positive")
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

// Location resolves BusinessTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
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
