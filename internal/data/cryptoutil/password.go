package cryptoutil

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"
)

// Algorithm identifies how a credential hash was derived.
type Algorithm string

const (
	AlgorithmPBKDF2SHA256 Algorithm = "pbkdf2-sha256"
	AlgorithmArgon2id     Algorithm = "argon2id"
	// AlgorithmLegacyPBKDF2 is base64(salt||key) with fixed PBKDF2-SHA256 parameters.
	AlgorithmLegacyPBKDF2 Algorithm = "legacy-pbkdf2"
	AlgorithmBcrypt       Algorithm = "bcrypt"
)

const (
	SaltBytes        = 16
	KeyBytes         = 32
	MaxPasswordBytes = 1024

	DefaultIterations = 100_000
	legacyIterations  = 100_000

	DefaultArgon2MemoryKiB = 64 * 1024
	DefaultArgon2Time      = 1
	DefaultArgon2Threads   = 4

	// Upper bounds on parameters read back from storage.
	maxIterations      = 10_000_000
	maxArgon2MemoryKiB = 1 << 20
	maxArgon2Time      = 64
)

// ErrDecode reports a stored credential hash that cannot be parsed.
var ErrDecode = errors.New("malformed credential hash")

// HashParams is the decoded form of a credential hash.
type HashParams struct {
	Algorithm  Algorithm
	Iterations int
	MemoryKiB  uint32
	Time       uint32
	Threads    uint8
	Salt       []byte
	Key        []byte
}

// PasswordHasherOptions configures new hashes and derivation concurrency.
type PasswordHasherOptions struct {
	Algorithm       Algorithm
	Iterations      int
	Argon2MemoryKiB uint32
	Argon2Time      uint32
	Argon2Threads   uint8
	// Concurrency bounds simultaneous key derivations. Zero means GOMAXPROCS.
	Concurrency int
	// Rand overrides the salt source in tests.
	Rand io.Reader
}

// PasswordHasher derives and verifies salted, iterated password hashes.
// It is safe for concurrent use.
type PasswordHasher struct {
	opts PasswordHasherOptions
	sem  *semaphore.Weighted
}

// NewPasswordHasher constructs a PasswordHasher, filling unset options with defaults.
func NewPasswordHasher(opts PasswordHasherOptions) *PasswordHasher {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmPBKDF2SHA256
	}
	if opts.Iterations < DefaultIterations {
		opts.Iterations = DefaultIterations
	}
	if opts.Argon2MemoryKiB == 0 {
		opts.Argon2MemoryKiB = DefaultArgon2MemoryKiB
	}
	if opts.Argon2Time == 0 {
		opts.Argon2Time = DefaultArgon2Time
	}
	if opts.Argon2Threads == 0 {
		opts.Argon2Threads = DefaultArgon2Threads
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	return &PasswordHasher{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.Concurrency)),
	}
}

// Hash derives a new credential hash for plaintext using a fresh random salt.
// Empty or oversized input fails with a validation error.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperrors.ValidationField("password", "password is required")
	}
	if len(plaintext) > MaxPasswordBytes {
		return "", apperrors.ValidationField("password", "password is too long")
	}

	salt := make([]byte, SaltBytes)
	if _, err := io.ReadFull(h.opts.Rand, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	params := HashParams{Algorithm: h.opts.Algorithm, Salt: salt}
	switch h.opts.Algorithm {
	case AlgorithmArgon2id:
		params.MemoryKiB = h.opts.Argon2MemoryKiB
		params.Time = h.opts.Argon2Time
		params.Threads = h.opts.Argon2Threads
	case AlgorithmPBKDF2SHA256:
		params.Iterations = h.opts.Iterations
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", h.opts.Algorithm)
	}

	key, err := h.derive(ctx, params, plaintext)
	if err != nil {
		return "", err
	}
	params.Key = key
	return EncodeHash(params), nil
}

// Verify reports whether plaintext matches encoded. Malformed hashes, a canceled
// context and empty input all yield false; no error is surfaced to the caller.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, encoded string) bool {
	if plaintext == "" || len(plaintext) > MaxPasswordBytes {
		return false
	}
	params, err := DecodeHash(encoded)
	if err != nil {
		return false
	}

	if params.Algorithm == AlgorithmBcrypt {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false
		}
		defer h.sem.Release(1)
		return bcrypt.CompareHashAndPassword(params.Key, []byte(plaintext)) == nil
	}

	derived, err := h.derive(ctx, params, plaintext)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derived, params.Key) == 1
}

// NeedsRehash reports whether encoded was produced with a different algorithm or
// weaker parameters than this hasher would use today.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	params, err := DecodeHash(encoded)
	if err != nil {
		return true
	}
	if params.Algorithm != h.opts.Algorithm {
		return true
	}
	switch params.Algorithm {
	case AlgorithmPBKDF2SHA256:
		return params.Iterations < h.opts.Iterations
	case AlgorithmArgon2id:
		return params.MemoryKiB < h.opts.Argon2MemoryKiB ||
			params.Time < h.opts.Argon2Time ||
			params.Threads < h.opts.Argon2Threads
	default:
		return true
	}
}

func (h *PasswordHasher) derive(ctx context.Context, p HashParams, plaintext string) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.sem.Release(1)

	keyLen := len(p.Key)
	if keyLen == 0 {
		keyLen = KeyBytes
	}

	switch p.Algorithm {
	case AlgorithmPBKDF2SHA256, AlgorithmLegacyPBKDF2:
		return pbkdf2.Key([]byte(plaintext), p.Salt, p.Iterations, keyLen, sha256.New), nil
	case AlgorithmArgon2id:
		return argon2.IDKey([]byte(plaintext), p.Salt, p.Time, p.MemoryKiB, p.Threads, uint32(keyLen)), nil //nolint:gosec // keyLen bounded by decode
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", p.Algorithm)
	}
}

var b64 = base64.RawStdEncoding

// EncodeHash renders params in their self-describing storage form.
func EncodeHash(p HashParams) string {
	switch p.Algorithm {
	case AlgorithmArgon2id:
		return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
			argon2.Version, p.MemoryKiB, p.Time, p.Threads, b64.EncodeToString(p.Salt), b64.EncodeToString(p.Key))
	case AlgorithmLegacyPBKDF2:
		buf := make([]byte, 0, len(p.Salt)+len(p.Key))
		buf = append(buf, p.Salt...)
		buf = append(buf, p.Key...)
		return base64.StdEncoding.EncodeToString(buf)
	case AlgorithmBcrypt:
		return string(p.Key)
	default:
		return fmt.Sprintf("$pbkdf2-sha256$i=%d$%s$%s",
			p.Iterations, b64.EncodeToString(p.Salt), b64.EncodeToString(p.Key))
	}
}

// DecodeHash parses any supported credential hash encoding. It returns an error
// wrapping ErrDecode when encoded is structurally unreadable.
func DecodeHash(encoded string) (HashParams, error) {
	switch {
	case encoded == "":
		return HashParams{}, fmt.Errorf("%w: empty", ErrDecode)
	case strings.HasPrefix(encoded, "$pbkdf2-sha256$"):
		return decodePBKDF2(encoded)
	case strings.HasPrefix(encoded, "$argon2id$"):
		return decodeArgon2id(encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		if _, err := bcrypt.Cost([]byte(encoded)); err != nil {
			return HashParams{}, fmt.Errorf("%w: bcrypt: %v", ErrDecode, err)
		}
		return HashParams{Algorithm: AlgorithmBcrypt, Key: []byte(encoded)}, nil
	case strings.HasPrefix(encoded, "$"):
		return HashParams{}, fmt.Errorf("%w: unknown scheme", ErrDecode)
	default:
		return decodeLegacy(encoded)
	}
}

func decodePBKDF2(encoded string) (HashParams, error) {
	// "", "pbkdf2-sha256", "i=N", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return HashParams{}, fmt.Errorf("%w: pbkdf2: want 5 segments, got %d", ErrDecode, len(parts))
	}
	iterStr, ok := strings.CutPrefix(parts[2], "i=")
	if !ok {
		return HashParams{}, fmt.Errorf("%w: pbkdf2: missing iterations", ErrDecode)
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations < 1 || iterations > maxIterations {
		return HashParams{}, fmt.Errorf("%w: pbkdf2: bad iterations %q", ErrDecode, iterStr)
	}
	salt, key, err := decodeSaltKey(parts[3], parts[4])
	if err != nil {
		return HashParams{}, err
	}
	return HashParams{Algorithm: AlgorithmPBKDF2SHA256, Iterations: iterations, Salt: salt, Key: key}, nil
}

func decodeArgon2id(encoded string) (HashParams, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return HashParams{}, fmt.Errorf("%w: argon2id: want 6 segments, got %d", ErrDecode, len(parts))
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return HashParams{}, fmt.Errorf("%w: argon2id: unsupported version %q", ErrDecode, parts[2])
	}
	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return HashParams{}, fmt.Errorf("%w: argon2id: bad parameters %q", ErrDecode, parts[3])
	}
	if memory < 8 || memory > maxArgon2MemoryKiB || timeCost < 1 || timeCost > maxArgon2Time || threads < 1 {
		return HashParams{}, fmt.Errorf("%w: argon2id: parameters out of range", ErrDecode)
	}
	salt, key, err := decodeSaltKey(parts[4], parts[5])
	if err != nil {
		return HashParams{}, err
	}
	return HashParams{
		Algorithm: AlgorithmArgon2id,
		MemoryKiB: memory,
		Time:      timeCost,
		Threads:   threads,
		Salt:      salt,
		Key:       key,
	}, nil
}

func decodeLegacy(encoded string) (HashParams, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return HashParams{}, fmt.Errorf("%w: legacy: %v", ErrDecode, err)
	}
	if len(raw) != SaltBytes+KeyBytes {
		return HashParams{}, fmt.Errorf("%w: legacy: want %d bytes, got %d", ErrDecode, SaltBytes+KeyBytes, len(raw))
	}
	return HashParams{
		Algorithm:  AlgorithmLegacyPBKDF2,
		Iterations: legacyIterations,
		Salt:       raw[:SaltBytes],
		Key:        raw[SaltBytes:],
	}, nil
}

func decodeSaltKey(saltB64, keyB64 string) ([]byte, []byte, error) {
	salt, err := b64.DecodeString(saltB64)
	if err != nil || len(salt) < SaltBytes {
		return nil, nil, fmt.Errorf("%w: bad salt", ErrDecode)
	}
	key, err := b64.DecodeString(keyB64)
	if err != nil || len(key) < KeyBytes || len(key) > 128 {
		return nil, nil, fmt.Errorf("%w: bad key", ErrDecode)
	}
	return salt, key, nil
}
