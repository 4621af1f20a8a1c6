package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv sets an environment variable for the duration of a test.
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, existed := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if existed {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

// clearEnv clears an environment variable for the duration of a test.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	old, existed := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if existed {
			os.Setenv(key, old)
		}
	})
}

// useLogProvider keeps Load from requiring a Resend key.
func useLogProvider(t *testing.T) {
	t.Helper()
	setEnv(t, "EMAIL_PROVIDER", "log")
}

func TestLoad_Defaults(t *testing.T) {
	envVars := []string{
		"SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT",
		"SERVER_WRITE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT", "SERVER_MAX_BODY_BYTES",
		"APP_ENV", "LOG_LEVEL",
		"CONTACT_RATE_REQUESTS", "CONTACT_RATE_WINDOW",
		"NEWSLETTER_RATE_REQUESTS", "NEWSLETTER_RATE_WINDOW",
		"EMAIL_TEAM_ADDRESS", "EMAIL_FROM_ADDRESS", "EMAIL_RATE_PER_SECOND",
		"SITE_NAME", "SITE_URL", "SITE_TIMEZONE",
		"CLIENT_IP_USE_REMOTE_ADDR", "DB_HOST", "REDIS_HOST",
		"API_RATE_REQUESTS", "API_RATE_WINDOW", "SECURITY_BLOCKED_EMAIL_DOMAINS",
	}
	for _, v := range envVars {
		clearEnv(t, v)
	}
	useLogProvider(t)

	cfg, err := Load()
	require.NoError(t, err)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(64<<10), cfg.Server.MaxBodyBytes)

	// App defaults
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)

	// Form budgets
	assert.Equal(t, 5, cfg.Contact.Requests)
	assert.Equal(t, time.Hour, cfg.Contact.Window)
	assert.Equal(t, 3, cfg.Newsletter.Requests)
	assert.Equal(t, time.Hour, cfg.Newsletter.Window)
	assert.Equal(t, 60, cfg.API.Requests)
	assert.Equal(t, time.Minute, cfg.API.Window)
	assert.True(t, cfg.API.Enabled())
	assert.Empty(t, cfg.Security.BlockedEmailDomains)

	// Email defaults
	assert.Equal(t, "contact@aivanceworks.com", cfg.Email.TeamAddress)
	assert.Equal(t, cfg.Email.TeamAddress, cfg.Email.FromAddress)
	assert.Equal(t, 2.0, cfg.Email.RatePerSecond)

	assert.False(t, cfg.ClientIP.UseRemoteAddr)
	assert.False(t, cfg.DatabaseEnabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_ServerConfig(t *testing.T) {
	useLogProvider(t)
	setEnv(t, "SERVER_HOST", "127.0.0.1")
	setEnv(t, "SERVER_PORT", "3000")
	setEnv(t, "SERVER_READ_TIMEOUT", "10s")
	setEnv(t, "SERVER_WRITE_TIMEOUT", "20s")
	setEnv(t, "SERVER_SHUTDOWN_TIMEOUT", "60s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_AppConfig(t *testing.T) {
	useLogProvider(t)
	setEnv(t, "APP_ENV", "production")
	setEnv(t, "LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "error", cfg.App.LogLevel)
}

func TestLoad_RateLimits(t *testing.T) {
	useLogProvider(t)
	setEnv(t, "CONTACT_RATE_REQUESTS", "10")
	setEnv(t, "CONTACT_RATE_WINDOW", "30m")
	setEnv(t, "NEWSLETTER_RATE_REQUESTS", "1")
	setEnv(t, "NEWSLETTER_RATE_WINDOW", "24h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Contact.Requests)
	assert.Equal(t, 30*time.Minute, cfg.Contact.Window)
	assert.Equal(t, 1, cfg.Newsletter.Requests)
	assert.Equal(t, 24*time.Hour, cfg.Newsletter.Window)
}

func TestLoad_APIGuard(t *testing.T) {
	useLogProvider(t)
	setEnv(t, "API_RATE_REQUESTS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.API.Enabled())

	setEnv(t, "API_RATE_REQUESTS", "-1")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API rate limit")
}

func TestLoad_BlockedEmailDomains(t *testing.T) {
	useLogProvider(t)
	setEnv(t, "SECURITY_BLOCKED_EMAIL_DOMAINS", "mailinator.com, ,guerrillamail.com ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"mailinator.com", "guerrillamail.com"}, cfg.Security.BlockedEmailDomains)
}

func TestLoad_ResendRequiresKey(t *testing.T) {
	setEnv(t, "EMAIL_PROVIDER", "resend")
	clearEnv(t, "RESEND_API_KEY")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY")

	setEnv(t, "RESEND_API_KEY", "re_test_key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EmailProviderResend, cfg.Email.Provider)
	assert.Equal(t, "re_test_key", cfg.Email.ResendAPIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SERVER_PORT", "not-a-number"},
		{"SERVER_READ_TIMEOUT", "invalid"},
		{"CONTACT_RATE_REQUESTS", "five"},
		{"CONTACT_RATE_WINDOW", "an hour"},
		{"NEWSLETTER_RATE_WINDOW", "soon"},
		{"EMAIL_RATE_PER_SECOND", "fast"},
		{"CLIENT_IP_USE_REMOTE_ADDR", "maybe"},
		{"API_RATE_WINDOW", "1 minute"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			useLogProvider(t)
			setEnv(t, tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_NonPositiveLimit(t *testing.T) {
	useLogProvider(t)
	setEnv(t, "CONTACT_RATE_REQUESTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact rate limit")
}

func TestConfig_Validate_UnknownProvider(t *testing.T) {
	cfg := &Config{
		Contact:    RateLimitConfig{Requests: 5, Window: time.Hour},
		Newsletter: RateLimitConfig{Requests: 3, Window: time.Hour},
		Email:      EmailConfig{Provider: "sendgrid", TeamAddress: "team@example.com", RatePerSecond: 1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendgrid")
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

func TestSiteConfig_Location(t *testing.T) {
	assert.Equal(t, time.UTC, SiteConfig{}.Location())
	assert.Equal(t, time.UTC, SiteConfig{Timezone: "Not/AZone"}.Location())

	loc := SiteConfig{Timezone: "UTC"}.Location()
	assert.Equal(t, "UTC", loc.String())
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{App: AppConfig{Env: tt.env}}
			assert.Equal(t, tt.expected, cfg.App.IsDevelopment())
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{App: AppConfig{Env: tt.env}}
			assert.Equal(t, tt.expected, cfg.App.IsProduction())
		})
	}
}

func TestConfig_Enabled(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "db", Password: "secret"},
		Redis:    RedisConfig{Host: "redis"},
	}
	assert.True(t, cfg.DatabaseEnabled())
	assert.True(t, cfg.RedisEnabled())

	cfg.Database.Password = ""
	assert.False(t, cfg.DatabaseEnabled())
}
