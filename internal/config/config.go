// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Email provider names accepted in EMAIL_PROVIDER.
const (
	EmailProviderResend = "resend"
	EmailProviderLog    = "log"
)

// Config holds all configuration for the application.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Site       SiteConfig
	Email      EmailConfig
	Contact    RateLimitConfig
	Newsletter RateLimitConfig
	API        RateLimitConfig
	ClientIP   ClientIPConfig
	Security   SecurityConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IsDevelopment returns true if the app is running in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}

// IsProduction returns true if the app is running in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	CacheTTL time.Duration
}

// SiteConfig describes the public site the service answers for.
type SiteConfig struct {
	Name     string
	URL      string
	Timezone string
}

// Location returns the time zone used when showing times to visitors.
// Unknown zone names fall back to UTC.
func (s SiteConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EmailConfig holds outbound mail configuration.
type EmailConfig struct {
	Provider      string
	ResendAPIKey  string
	ResendBaseURL string
	FromAddress   string
	TeamAddress   string
	RatePerSecond float64
	Timeout       time.Duration
}

// RateLimitConfig holds the admission budget for one form. For the API
// guard a zero Requests disables limiting.
type RateLimitConfig struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// Enabled reports whether a budget is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0
}

// SecurityConfig holds input screening options.
type SecurityConfig struct {
	BlockedEmailDomains []string
}

// ClientIPConfig controls how the client identifier is derived.
type ClientIPConfig struct {
	// UseRemoteAddr falls back to the connection address instead of
	// "unknown" when no forwarding header is present.
	UseRemoteAddr bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// App config
	cfg.App.Env = getEnvOrDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Server config
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")
	if cfg.Server.Port, err = getEnvAsInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	if cfg.Server.ReadTimeout, err = getEnvAsDuration("SERVER_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	if cfg.Server.WriteTimeout, err = getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	if cfg.Server.ShutdownTimeout, err = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}
	maxBody, err := getEnvAsInt("SERVER_MAX_BODY_BYTES", 64<<10)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_MAX_BODY_BYTES: %w", err)
	}
	cfg.Server.MaxBodyBytes = int64(maxBody)

	// Database config
	cfg.Database.Host = getEnvOrDefault("DB_HOST", "")
	if cfg.Database.Port, err = getEnvAsInt("DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.User = getEnvOrDefault("DB_USER", "leadform")
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	cfg.Database.DBName = getEnvOrDefault("DB_NAME", "leadform")
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	if cfg.Database.MaxOpenConns, err = getEnvAsInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	if cfg.Database.MaxIdleConns, err = getEnvAsInt("DB_MAX_IDLE_CONNS", 2); err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	if cfg.Database.ConnMaxLifetime, err = getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	// Redis config
	cfg.Redis.Host = getEnvOrDefault("REDIS_HOST", "")
	if cfg.Redis.Port, err = getEnvAsInt("REDIS_PORT", 6379); err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.Redis.PoolSize, err = getEnvAsInt("REDIS_POOL_SIZE", 10); err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	if cfg.Redis.CacheTTL, err = getEnvAsDuration("REDIS_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid REDIS_CACHE_TTL: %w", err)
	}

	// Site config
	cfg.Site.Name = getEnvOrDefault("SITE_NAME", "AIvanceWorks")
	cfg.Site.URL = strings.TrimRight(getEnvOrDefault("SITE_URL", "https://aivanceworks.com"), "/")
	cfg.Site.Timezone = getEnvOrDefault("SITE_TIMEZONE", "UTC")

	// Email config
	cfg.Email.Provider = strings.ToLower(getEnvOrDefault("EMAIL_PROVIDER", EmailProviderResend))
	cfg.Email.ResendAPIKey = getEnvOrDefault("RESEND_API_KEY", "")
	cfg.Email.ResendBaseURL = getEnvOrDefault("RESEND_BASE_URL", "https://api.resend.com")
	cfg.Email.TeamAddress = getEnvOrDefault("EMAIL_TEAM_ADDRESS", "contact@aivanceworks.com")
	cfg.Email.FromAddress = getEnvOrDefault("EMAIL_FROM_ADDRESS", cfg.Email.TeamAddress)
	if cfg.Email.RatePerSecond, err = getEnvAsFloat("EMAIL_RATE_PER_SECOND", 2); err != nil {
		return nil, fmt.Errorf("invalid EMAIL_RATE_PER_SECOND: %w", err)
	}
	if cfg.Email.Timeout, err = getEnvAsDuration("EMAIL_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid EMAIL_TIMEOUT: %w", err)
	}

	// Contact form budget
	if cfg.Contact.Requests, err = getEnvAsInt("CONTACT_RATE_REQUESTS", 5); err != nil {
		return nil, fmt.Errorf("invalid CONTACT_RATE_REQUESTS: %w", err)
	}
	if cfg.Contact.Window, err = getEnvAsDuration("CONTACT_RATE_WINDOW", time.Hour); err != nil {
		return nil, fmt.Errorf("invalid CONTACT_RATE_WINDOW: %w", err)
	}
	if cfg.Contact.CleanupInterval, err = getEnvAsDuration("CONTACT_RATE_CLEANUP", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid CONTACT_RATE_CLEANUP: %w", err)
	}

	// Newsletter budget
	if cfg.Newsletter.Requests, err = getEnvAsInt("NEWSLETTER_RATE_REQUESTS", 3); err != nil {
		return nil, fmt.Errorf("invalid NEWSLETTER_RATE_REQUESTS: %w", err)
	}
	if cfg.Newsletter.Window, err = getEnvAsDuration("NEWSLETTER_RATE_WINDOW", time.Hour); err != nil {
		return nil, fmt.Errorf("invalid NEWSLETTER_RATE_WINDOW: %w", err)
	}
	if cfg.Newsletter.CleanupInterval, err = getEnvAsDuration("NEWSLETTER_RATE_CLEANUP", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid NEWSLETTER_RATE_CLEANUP: %w", err)
	}

	// API guard, shared by every /api route
	if cfg.API.Requests, err = getEnvAsInt("API_RATE_REQUESTS", 60); err != nil {
		return nil, fmt.Errorf("invalid API_RATE_REQUESTS: %w", err)
	}
	if cfg.API.Window, err = getEnvAsDuration("API_RATE_WINDOW", time.Minute); err != nil {
		return nil, fmt.Errorf("invalid API_RATE_WINDOW: %w", err)
	}
	if cfg.API.CleanupInterval, err = getEnvAsDuration("API_RATE_CLEANUP", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid API_RATE_CLEANUP: %w", err)
	}

	cfg.Security.BlockedEmailDomains = getEnvAsList("SECURITY_BLOCKED_EMAIL_DOMAINS")

	// Client identifier policy
	if cfg.ClientIP.UseRemoteAddr, err = getEnvAsBool("CLIENT_IP_USE_REMOTE_ADDR", false); err != nil {
		return nil, fmt.Errorf("invalid CLIENT_IP_USE_REMOTE_ADDR: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Contact.Requests <= 0 || c.Contact.Window <= 0 {
		errs = append(errs, errors.New("contact rate limit requests and window must be positive"))
	}
	if c.Newsletter.Requests <= 0 || c.Newsletter.Window <= 0 {
		errs = append(errs, errors.New("newsletter rate limit requests and window must be positive"))
	}

	if c.API.Requests < 0 || (c.API.Enabled() && c.API.Window <= 0) {
		errs = append(errs, errors.New("API rate limit requests must not be negative and its window must be positive"))
	}

	switch c.Email.Provider {
	case EmailProviderResend:
		if c.Email.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when EMAIL_PROVIDER=resend"))
		}
	case EmailProviderLog:
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider))
	}

	if c.Email.TeamAddress == "" {
		errs = append(errs, errors.New("EMAIL_TEAM_ADDRESS must not be empty"))
	}
	if c.Email.RatePerSecond <= 0 {
		errs = append(errs, errors.New("EMAIL_RATE_PER_SECOND must be positive"))
	}

	return errors.Join(errs...)
}

// DatabaseEnabled returns true if database configuration is provided.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != "" && c.Database.Password != ""
}

// RedisEnabled returns true if Redis configuration is provided.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(valueStr)
}

// getEnvAsFloat returns the environment variable as a float.
func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(valueStr, 64)
}

// getEnvAsBool returns the environment variable as a boolean.
func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(valueStr)
}

// getEnvAsDuration returns the environment variable as a duration.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(valueStr)
}

// getEnvAsList splits a comma-separated variable, dropping blank entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
