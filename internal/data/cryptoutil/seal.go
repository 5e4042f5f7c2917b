package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sealer encrypts small records at rest. The associated data binds a ciphertext to
// the key it is stored under, so a sealed value cannot be replayed under another key.
type Sealer interface {
	Seal(plaintext, associated []byte) (string, error)
	Open(sealed string, associated []byte) ([]byte, error)
}

const (
	// Versioned prefix to allow future key/algorithm rotations without data migrations.
	sealPrefixV1 = "v1:"
	plainPrefix  = "plain:"
)

// AESGCMSealer implements Sealer using AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer constructs a new AESGCMSealer. Key must be 32 bytes (AES-256).
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMSealer{aead: aead}, nil
}

// DeriveKey turns a configured secret into a 32-byte key. A 64-character hex string
// is used verbatim; anything else is hashed with SHA-256.
func DeriveKey(secret string) []byte {
	if decoded, err := hex.DecodeString(secret); err == nil && len(decoded) == 32 {
		return decoded
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (s *AESGCMSealer) Seal(plaintext, associated []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// nonce||ciphertext
	buf := s.aead.Seal(nonce, nonce, plaintext, associated)
	return sealPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts a value produced by Seal. Values written before a key was
// configured (plain: prefix) are still accepted so enabling encryption needs no migration.
func (s *AESGCMSealer) Open(sealed string, associated []byte) ([]byte, error) {
	if strings.HasPrefix(sealed, plainPrefix) {
		return PlainSealer{}.Open(sealed, associated)
	}
	if !strings.HasPrefix(sealed, sealPrefixV1) {
		return nil, fmt.Errorf("unknown ciphertext version (prefix: %s)", prefixOf(sealed))
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(sealPrefixV1):])
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	return s.aead.Open(nil, data[:nonceSize], data[nonceSize:], associated)
}

// PlainSealer stores values base64-encoded with a prefix marker. Used in development and tests.
type PlainSealer struct{}

func (PlainSealer) Seal(plaintext, _ []byte) (string, error) {
	return plainPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (PlainSealer) Open(sealed string, _ []byte) ([]byte, error) {
	if !strings.HasPrefix(sealed, plainPrefix) {
		return nil, errors.New("invalid plain payload")
	}
	return base64.StdEncoding.DecodeString(sealed[len(plainPrefix):])
}

func prefixOf(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
