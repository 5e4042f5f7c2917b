package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Identifier sizes in random bytes.
const (
	UserIDBytes              = 15
	MinSessionTokenBytes     = 20
	DefaultSessionTokenBytes = 32
)

// NewIdentifier returns byteLength bytes from crypto/rand encoded as unpadded URL-safe base64.
func NewIdentifier(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("identifier length must be positive, got %d", byteLength)
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewUserID returns a fresh user identifier.
func NewUserID() (string, error) { return NewIdentifier(UserIDBytes) }

// TokenDigest returns the hex SHA-256 of a session token. Stores key sessions by
// digest so the raw token only ever exists in the client's credential carrier.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ShortDigest is a log-safe reference to a session token.
func ShortDigest(token string) string {
	return TokenDigest(token)[:12]
}
