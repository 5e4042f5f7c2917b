package cryptoutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

func newTestHasher(alg Algorithm) *PasswordHasher {
	return NewPasswordHasher(PasswordHasherOptions{
		Algorithm:       alg,
		Argon2MemoryKiB: 8 * 1024,
	})
}

func TestPasswordHasher_HashVerify(t *testing.T) {
	ctx := context.Background()
	for _, alg := range []Algorithm{AlgorithmPBKDF2SHA256, AlgorithmArgon2id} {
		t.Run(string(alg), func(t *testing.T) {
			h := newTestHasher(alg)

			encoded, err := h.Hash(ctx, "Correct-Horse-9")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encoded, "$"+string(alg)+"$"), encoded)

			assert.True(t, h.Verify(ctx, "Correct-Horse-9", encoded))
			assert.False(t, h.Verify(ctx, "correct-horse-9", encoded))
			assert.False(t, h.Verify(ctx, "", encoded))
		})
	}
}

func TestPasswordHasher_SaltIsUniquePerHash(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(AlgorithmPBKDF2SHA256)

	first, err := h.Hash(ctx, "Sup3rSecret")
	require.NoError(t, err)
	second, err := h.Hash(ctx, "Sup3rSecret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify(ctx, "Sup3rSecret", first))
	assert.True(t, h.Verify(ctx, "Sup3rSecret", second))

	p1, err := DecodeHash(first)
	require.NoError(t, err)
	p2, err := DecodeHash(second)
	require.NoError(t, err)
	assert.Len(t, p1.Salt, SaltBytes)
	assert.Len(t, p1.Key, KeyBytes)
	assert.Equal(t, DefaultIterations, p1.Iterations)
	assert.NotEqual(t, p1.Salt, p2.Salt)
}

func TestPasswordHasher_HashRejectsInvalidInput(t *testing.T) {
	h := newTestHasher(AlgorithmPBKDF2SHA256)

	_, err := h.Hash(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = h.Hash(context.Background(), strings.Repeat("a", MaxPasswordBytes+1))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPasswordHasher_HashUsesInjectedRand(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltBytes)
	h := NewPasswordHasher(PasswordHasherOptions{Rand: bytes.NewReader(salt)})

	encoded, err := h.Hash(context.Background(), "Passw0rd!")
	require.NoError(t, err)

	want := pbkdf2.Key([]byte("Passw0rd!"), salt, DefaultIterations, KeyBytes, sha256.New)
	assert.Equal(t, EncodeHash(HashParams{
		Algorithm:  AlgorithmPBKDF2SHA256,
		Iterations: DefaultIterations,
		Salt:       salt,
		Key:        want,
	}), encoded)
}

func TestPasswordHasher_VerifyLegacyFormats(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(AlgorithmPBKDF2SHA256)

	salt := bytes.Repeat([]byte{1}, SaltBytes)
	key := pbkdf2.Key([]byte("OldPassw0rd"), salt, 100000, KeyBytes, sha256.New)
	legacy := base64.StdEncoding.EncodeToString(append(append([]byte{}, salt...), key...))

	assert.True(t, h.Verify(ctx, "OldPassw0rd", legacy))
	assert.False(t, h.Verify(ctx, "oldpassw0rd", legacy))
	assert.True(t, h.NeedsRehash(legacy))

	bcryptHash, err := bcrypt.GenerateFromPassword([]byte("Worker-Pass1"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, h.Verify(ctx, "Worker-Pass1", string(bcryptHash)))
	assert.False(t, h.Verify(ctx, "worker-pass1", string(bcryptHash)))
	assert.True(t, h.NeedsRehash(string(bcryptHash)))
}

func TestPasswordHasher_VerifyMalformedReturnsFalse(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(AlgorithmPBKDF2SHA256)

	for _, encoded := range []string{
		"",
		"not-base64!!",
		base64.StdEncoding.EncodeToString([]byte("too short")),
		"$pbkdf2-sha256$i=abc$AAAA$BBBB",
		"$pbkdf2-sha256$i=100000$onlysalt",
		"$pbkdf2-sha256$i=0$" + b64.EncodeToString(make([]byte, 16)) + "$" + b64.EncodeToString(make([]byte, 32)),
		"$argon2id$v=16$m=65536,t=1,p=4$AAAA$BBBB",
		"$argon2id$v=19$m=x$AAAA$BBBB",
		"$scrypt$whatever",
		"$2a$bogus",
	} {
		assert.False(t, h.Verify(ctx, "Anything1", encoded), "encoded %q", encoded)

		_, err := DecodeHash(encoded)
		assert.True(t, errors.Is(err, ErrDecode), "encoded %q: %v", encoded, err)
	}
}

func TestPasswordHasher_VerifyHonoursCanceledContext(t *testing.T) {
	h := NewPasswordHasher(PasswordHasherOptions{Concurrency: 1})
	encoded, err := h.Hash(context.Background(), "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, h.Verify(ctx, "Passw0rd!", encoded))
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	ctx := context.Background()
	weak := NewPasswordHasher(PasswordHasherOptions{Iterations: DefaultIterations})
	strong := NewPasswordHasher(PasswordHasherOptions{Iterations: 2 * DefaultIterations})

	encoded, err := weak.Hash(ctx, "Passw0rd!")
	require.NoError(t, err)

	assert.False(t, weak.NeedsRehash(encoded))
	assert.True(t, strong.NeedsRehash(encoded))
	assert.True(t, newTestHasher(AlgorithmArgon2id).NeedsRehash(encoded))
	assert.True(t, weak.NeedsRehash("garbage"))
}

func TestPasswordHasher_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	h := NewPasswordHasher(PasswordHasherOptions{Concurrency: 2})
	encoded, err := h.Hash(ctx, "Passw0rd!")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.Verify(ctx, "Passw0rd!", encoded)
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "verify %d", i)
	}
}
