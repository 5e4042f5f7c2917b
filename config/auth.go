package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// PasswordAlgorithm selects the key-derivation function used for new credential hashes.
type PasswordAlgorithm string

const (
	// PasswordAlgorithmPBKDF2 derives keys with PBKDF2-HMAC-SHA256.
	PasswordAlgorithmPBKDF2 PasswordAlgorithm = "pbkdf2"
	// PasswordAlgorithmArgon2id derives keys with Argon2id.
	PasswordAlgorithmArgon2id PasswordAlgorithm = "argon2id"
)

// UnmarshalText implements encoding.TextUnmarshaler for PasswordAlgorithm.
func (a *PasswordAlgorithm) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "pbkdf2", "argon2id":
		*a = PasswordAlgorithm(v)
		return nil
	default:
		return fmt.Errorf("invalid PasswordAlgorithm: %q (valid options: pbkdf2, argon2id)", v)
	}
}

// SessionStoreKind selects the backend that persists sessions.
type SessionStoreKind string

const (
	// SessionStorePostgres keeps sessions in the sessions table.
	SessionStorePostgres SessionStoreKind = "postgres"
	// SessionStoreRedis keeps sessions in Redis with native TTLs.
	SessionStoreRedis SessionStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (k *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "redis":
		*k = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreKind: %q (valid options: postgres, redis)", v)
	}
}

const (
	minPasswordIterations = 100_000
	minTokenBytes         = 20
	maxTokenBytes         = 64
)

// AuthConfig groups credential hashing and session configuration.
type AuthConfig struct {
	// CookieName is the credential carrier cookie.
	CookieName string `env:"AUTH_COOKIE_NAME" envDefault:"ahava_auth_session"`

	// SessionTTL is the absolute lifetime of a session.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"` // 30 days

	// SessionStore selects where sessions are persisted.
	SessionStore SessionStoreKind `env:"AUTH_SESSION_STORE" envDefault:"postgres"`

	// StoreTimeout bounds every session/user store call.
	StoreTimeout time.Duration `env:"AUTH_STORE_TIMEOUT" envDefault:"3s"`

	// TokenBytes is the entropy of session tokens.
	TokenBytes int `env:"AUTH_TOKEN_BYTES" envDefault:"32"`

	Password PasswordConfig
}

// PasswordConfig controls key derivation cost for new hashes.
type PasswordConfig struct {
	Algorithm  PasswordAlgorithm `env:"AUTH_PASSWORD_ALGORITHM"  envDefault:"pbkdf2"`
	Iterations int               `env:"AUTH_PASSWORD_ITERATIONS" envDefault:"100000"`

	Argon2MemoryKiB uint32 `env:"AUTH_ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Time      uint32 `env:"AUTH_ARGON2_TIME"       envDefault:"1"`
	Argon2Threads   uint8  `env:"AUTH_ARGON2_THREADS"    envDefault:"4"`

	// Concurrency bounds parallel key derivations. Zero means GOMAXPROCS.
	Concurrency int `env:"AUTH_HASH_CONCURRENCY" envDefault:"0"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.CookieName = strings.TrimSpace(a.CookieName)
	if a.CookieName == "" {
		a.CookieName = "ahava_auth_session"
	}
	if a.SessionTTL < time.Minute {
		a.SessionTTL = time.Minute
	}
	if a.SessionStore == "" {
		a.SessionStore = SessionStorePostgres
	}
	if a.StoreTimeout <= 0 {
		a.StoreTimeout = 3 * time.Second
	}
	if a.TokenBytes < minTokenBytes {
		a.TokenBytes = minTokenBytes
	}
	if a.TokenBytes > maxTokenBytes {
		a.TokenBytes = maxTokenBytes
	}
	a.Password.Sanitize()
}

// Sanitize clamps key derivation cost to safe minimums.
func (p *PasswordConfig) Sanitize() {
	if p.Algorithm == "" {
		p.Algorithm = PasswordAlgorithmPBKDF2
	}
	if p.Iterations < minPasswordIterations {
		p.Iterations = minPasswordIterations
	}
	if p.Argon2MemoryKiB < 19*1024 {
		p.Argon2MemoryKiB = 19 * 1024
	}
	if p.Argon2Time < 1 {
		p.Argon2Time = 1
	}
	if p.Argon2Threads < 1 {
		p.Argon2Threads = 1
	}
	if p.Concurrency <= 0 {
		p.Concurrency = runtime.GOMAXPROCS(0)
	}
}
