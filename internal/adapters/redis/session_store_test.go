package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahava-health/ahava-api/internal/data"
	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/ports"
	"github.com/ahava-health/ahava-api/internal/testutil"
)

func newTestSealer(t *testing.T) cryptoutil.Sealer {
	t.Helper()
	s, err := cryptoutil.NewAESGCMSealer(cryptoutil.DeriveKey("session-store-test"))
	require.NoError(t, err)
	return s
}

func TestSessionStore_CreateAndFind(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{Client: client, Sealer: newTestSealer(t)})
	ctx := context.Background()

	created, err := store.Create(ctx, ports.CreateSessionInput{
		UserID:    "user-123",
		Token:     "tok-create-find",
		TTL:       30 * time.Minute,
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-create-find", created.Token)

	got, err := store.FindByToken(ctx, "tok-create-find")
	require.NoError(t, err)
	assert.Equal(t, "user-123", got.UserID)
	assert.Equal(t, "10.0.0.1", got.IP)
	assert.Equal(t, "test-agent", got.UserAgent)
	assert.WithinDuration(t, created.ExpiresAt, got.ExpiresAt, time.Millisecond)
}

func TestSessionStore_DoesNotStoreRawToken(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{Client: client, Sealer: newTestSealer(t)})
	ctx := context.Background()

	_, err := store.Create(ctx, ports.CreateSessionInput{UserID: "u1", Token: "raw-token-value", TTL: time.Minute})
	require.NoError(t, err)

	exists, err := client.Exists(ctx, "session:raw-token-value").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	raw, err := client.Get(ctx, "session:"+cryptoutil.TokenDigest("raw-token-value")).Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "u1", "payload must be sealed")
}

func TestSessionStore_FindUnknown(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{Client: client})

	_, err := store.FindByToken(context.Background(), "non-existent")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = store.FindByToken(context.Background(), "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStore_ExpiredByClock(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	clock := data.NewFixedTimeProvider(time.Now())
	store := NewSessionStore(SessionStoreOptions{Client: client, Clock: clock})
	ctx := context.Background()

	_, err := store.Create(ctx, ports.CreateSessionInput{UserID: "u1", Token: "tok-exp", TTL: time.Hour})
	require.NoError(t, err)

	clock.AddTime(time.Hour)
	_, err = store.FindByToken(ctx, "tok-exp")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStore_DeleteIsIdempotent(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{Client: client})
	ctx := context.Background()

	_, err := store.Create(ctx, ports.CreateSessionInput{UserID: "u1", Token: "tok-del", TTL: time.Minute})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "tok-del"))
	require.NoError(t, store.Delete(ctx, "tok-del"))
	require.NoError(t, store.Delete(ctx, ""))

	_, err = store.FindByToken(ctx, "tok-del")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStore_DeleteByUser(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{Client: client, Prefix: "sess-test:"})
	ctx := context.Background()

	for _, tok := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, ports.CreateSessionInput{UserID: "u1", Token: tok, TTL: time.Minute})
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, ports.CreateSessionInput{UserID: "u2", Token: "d", TTL: time.Minute})
	require.NoError(t, err)

	// An already-deleted member is not counted.
	require.NoError(t, store.Delete(ctx, "c"))

	n, err := store.DeleteByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.FindByToken(ctx, "a")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = store.FindByToken(ctx, "d")
	assert.NoError(t, err)

	ttl, err := client.TTL(ctx, "sess-test:user:u2").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSessionStore_RejectsBadInput(t *testing.T) {
	store := NewSessionStore(SessionStoreOptions{Client: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})})
	ctx := context.Background()

	_, err := store.Create(ctx, ports.CreateSessionInput{UserID: "u1", TTL: time.Minute})
	assert.Error(t, err)
	_, err = store.Create(ctx, ports.CreateSessionInput{UserID: "u1", Token: "t", TTL: 0})
	assert.Error(t, err)
}
