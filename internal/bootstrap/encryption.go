package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
)

// NewSessionSealer builds the sealer protecting session payloads at rest in Redis.
// The key may be 64 hex characters or any passphrase, which is stretched with SHA-256.
// Without a key, development mode falls back to unsealed JSON; production refuses to start.
//
//nolint:ireturn // callers only need the Sealer contract.
func NewSessionSealer(key string, isDev bool, logger *slog.Logger) (cryptoutil.Sealer, error) {
	if key == "" {
		if !isDev {
			return nil, errors.New("session encryption key is required outside development")
		}
		if logger != nil {
			logger.Warn("session encryption key is empty; redis session payloads are stored unsealed")
		}
		return cryptoutil.PlainSealer{}, nil
	}

	sealer, err := cryptoutil.NewAESGCMSealer(cryptoutil.DeriveKey(key))
	if err != nil {
		return nil, fmt.Errorf("create session sealer: %w", err)
	}
	return sealer, nil
}
