package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - session-reaper",
			input:    "session-reaper",
			expected: map[ServiceMode]bool{ServiceModeSessionReaper: true},
		},
		{
			name:  "services with spaces and duplicates",
			input: " http , session-reaper , http ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:          true,
				ServiceModeSessionReaper: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,rules-engine",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "http"}
	if !cfg.IsHTTPServerEnabled() || cfg.IsSessionReaperEnabled() {
		t.Errorf("http only: unexpected enabled set")
	}

	cfg = AppConfig{Services: "http,session-reaper"}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsSessionReaperEnabled() {
		t.Errorf("http and reaper: unexpected enabled set")
	}

	cfg = AppConfig{Services: "invalid-service"}
	if cfg.IsHTTPServerEnabled() || cfg.IsSessionReaperEnabled() {
		t.Errorf("invalid config should enable nothing")
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.CookieName != "ahava_auth_session" {
		t.Errorf("cookie name = %q", cfg.Auth.CookieName)
	}
	if cfg.Auth.SessionTTL != 30*24*time.Hour {
		t.Errorf("session ttl = %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.Password.Iterations != 100000 {
		t.Errorf("iterations = %d", cfg.Auth.Password.Iterations)
	}
	if cfg.Auth.TokenBytes != 32 {
		t.Errorf("token bytes = %d", cfg.Auth.TokenBytes)
	}
	if cfg.RateLimit.Strict != 10 || cfg.RateLimit.Normal != 30 || cfg.RateLimit.Relaxed != 60 {
		t.Errorf("unexpected tiers: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("window = %v", cfg.RateLimit.Window)
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_PASSWORD_ALGORITHM", "ARGON2ID")
	t.Setenv("AUTH_SESSION_STORE", "redis")
	t.Setenv("AUTH_TOKEN_BYTES", "24")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("RATE_LIMIT_STRICT", "5")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	if cfg.Auth.Password.Algorithm != PasswordAlgorithmArgon2id {
		t.Errorf("algorithm = %q", cfg.Auth.Password.Algorithm)
	}
	if cfg.Auth.SessionStore != SessionStoreRedis {
		t.Errorf("session store = %q", cfg.Auth.SessionStore)
	}
	if cfg.Auth.TokenBytes != 24 {
		t.Errorf("token bytes = %d", cfg.Auth.TokenBytes)
	}
	if cfg.RateLimit.Backend != RateLimitBackendRedis || cfg.RateLimit.Strict != 5 {
		t.Errorf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if !cfg.NeedsRedis() {
		t.Errorf("expected NeedsRedis with redis session store")
	}
}

func TestAppConfig_ParseRejectsUnknownEnum(t *testing.T) {
	t.Setenv("AUTH_SESSION_STORE", "memcached")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatalf("expected parse error for unknown session store")
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	cfg := AuthConfig{
		CookieName: "  ",
		TokenBytes: 8,
		Password:   PasswordConfig{Iterations: 1000},
	}
	cfg.Sanitize()

	if cfg.CookieName != "ahava_auth_session" {
		t.Errorf("cookie name = %q", cfg.CookieName)
	}
	if cfg.TokenBytes != 20 {
		t.Errorf("token bytes should clamp to 20, got %d", cfg.TokenBytes)
	}
	if cfg.Password.Iterations != 100000 {
		t.Errorf("iterations should clamp to 100000, got %d", cfg.Password.Iterations)
	}
	if cfg.Password.Concurrency < 1 {
		t.Errorf("concurrency should default to GOMAXPROCS")
	}
	if cfg.StoreTimeout != 3*time.Second {
		t.Errorf("store timeout = %v", cfg.StoreTimeout)
	}

	cfg.TokenBytes = 512
	cfg.Sanitize()
	if cfg.TokenBytes != 64 {
		t.Errorf("token bytes should clamp to 64, got %d", cfg.TokenBytes)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	base := func() AppConfig {
		return AppConfig{
			Services: "http",
			Auth:     AuthConfig{SessionStore: SessionStoreRedis},
			Postgres: DBConfig{Password: "secret"},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected missing SESSION_ENCRYPTION_KEY to fail in production")
	}

	cfg = base()
	cfg.IsDev = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("dev mode should not require secrets: %v", err)
	}

	cfg = base()
	cfg.SessionEncryptionKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg = base()
	cfg.SessionEncryptionKey = "k"
	cfg.Postgres.Password = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected missing DB_PASSWORD to fail in production")
	}
}

func TestHTTPConfig_ValidateCookieDomain(t *testing.T) {
	tests := []struct {
		domain  string
		wantErr bool
	}{
		{domain: "", wantErr: false},
		{domain: "localhost", wantErr: false},
		{domain: ".Ahava.Health", wantErr: false},
		{domain: "app.ahava.co.za", wantErr: false},
		{domain: "com", wantErr: true},
		{domain: "co.uk", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			cfg := HTTPConfig{CookieDomain: tt.domain}
			cfg.Sanitize()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.domain, err, tt.wantErr)
			}
		})
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
		Prefix:        " ahava. ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "ahava" {
		t.Fatalf("expected prefix to be trimmed, got %q", cfg.Prefix)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Second, BatchSize: 0}
	cfg.Sanitize()
	if cfg.Interval != time.Minute {
		t.Errorf("interval = %v", cfg.Interval)
	}
	if cfg.BatchSize != 1 {
		t.Errorf("batch size = %d", cfg.BatchSize)
	}
}
