package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	LogLevel string

	RateLimitRPM int
	SessionDays  int

	BackendURL       string
	BackendTimeoutMS int

	RoleResolveTimeoutMS int
	ArchiveDeclinedDays  int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("FO_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("FO_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("FO_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("FO_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FO_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("FO_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("FO_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("FO_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("FO_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("FO_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("FO_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("FO_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("FO_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.RateLimitRPM, err = getEnvIntOrDefault("FO_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("FO_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FO_BACKEND_URL")), "/")

	cfg.BackendTimeoutMS, err = getEnvIntOrDefault("FO_BACKEND_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	if cfg.BackendTimeoutMS <= 0 || cfg.BackendTimeoutMS > 60000 {
		return nil, fmt.Errorf("FO_BACKEND_TIMEOUT_MS must be between 1 and 60000 (got: %d)", cfg.BackendTimeoutMS)
	}

	cfg.RoleResolveTimeoutMS, err = getEnvIntOrDefault("FO_ROLE_RESOLVE_TIMEOUT_MS", 3000)
	if err != nil {
		return nil, err
	}
	if cfg.RoleResolveTimeoutMS <= 0 || cfg.RoleResolveTimeoutMS > 30000 {
		return nil, fmt.Errorf("FO_ROLE_RESOLVE_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.RoleResolveTimeoutMS)
	}

	cfg.ArchiveDeclinedDays, err = getEnvIntOrDefault("FO_ARCHIVE_DECLINED_DAYS", 90)
	if err != nil {
		return nil, err
	}
	if cfg.ArchiveDeclinedDays < 1 {
		return nil, fmt.Errorf("FO_ARCHIVE_DECLINED_DAYS must be at least 1 (got: %d)", cfg.ArchiveDeclinedDays)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"FO_ENV":                     c.Env,
		"FO_HTTP_ADDR":               c.HTTPAddr,
		"FO_BASE_URL":                c.BaseURL,
		"FO_DB_DSN":                  redactDSN(c.DBDSN),
		"FO_JWT_SECRET":              "[REDACTED]",
		"FO_LOG_LEVEL":               c.LogLevel,
		"FO_RATE_LIMIT_RPM":          fmt.Sprintf("%d", c.RateLimitRPM),
		"FO_SESSION_DAYS":            fmt.Sprintf("%d", c.SessionDays),
		"FO_BACKEND_URL":             c.BackendURL,
		"FO_BACKEND_TIMEOUT_MS":      fmt.Sprintf("%d", c.BackendTimeoutMS),
		"FO_ROLE_RESOLVE_TIMEOUT_MS": fmt.Sprintf("%d", c.RoleResolveTimeoutMS),
		"FO_ARCHIVE_DECLINED_DAYS":   fmt.Sprintf("%d", c.ArchiveDeclinedDays),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
