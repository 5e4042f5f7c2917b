package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Credential hashing and session configuration
//   - ratelimit.go: Request admission tiers
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode and session reaper configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// SessionEncryptionKey seals session payloads stored in Redis.
	// Required outside development when the Redis session store is selected.
	SessionEncryptionKey string `env:"SESSION_ENCRYPTION_KEY"`

	Auth      AuthConfig
	RateLimit RateLimitConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services.
	Services string `env:"SERVICES" envDefault:"http"`

	Reaper ReaperConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.RateLimit.Sanitize()
	c.HTTP.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.SessionEncryptionKey = strings.TrimSpace(c.SessionEncryptionKey)

	c.detectDevMode()
}

// Validate reports configuration that must prevent startup.
// Development mode relaxes secret requirements; production does not.
func (c *AppConfig) Validate() error {
	var errs []error

	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}

	if !c.IsDev {
		if c.Auth.SessionStore == SessionStoreRedis && c.SessionEncryptionKey == "" {
			errs = append(errs, errors.New("SESSION_ENCRYPTION_KEY is required when AUTH_SESSION_STORE=redis"))
		}
		if c.Postgres.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required"))
		}
	}

	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback since the web client tooling sets it.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsSessionReaperEnabled returns true if the session reaper service is enabled.
func (c *AppConfig) IsSessionReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeSessionReaper]
}

// NeedsRedis reports whether any enabled component requires a Redis connection.
func (c *AppConfig) NeedsRedis() bool {
	return c.Auth.SessionStore == SessionStoreRedis ||
		(c.RateLimit.Enabled && c.RateLimit.Backend == RateLimitBackendRedis)
}
