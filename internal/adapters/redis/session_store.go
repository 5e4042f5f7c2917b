// Package redis provides Redis-backed adapters for sessions and rate limiting.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/ports"
)

const defaultSessionPrefix = "session:"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient
	Prefix string            // Optional: defaults to "session:"
	Sealer cryptoutil.Sealer // Optional: defaults to cryptoutil.PlainSealer
	Clock  Clock             // Optional: defaults to the system clock
}

// SessionStore keeps sessions in Redis under the SHA-256 digest of their token.
// Each record expires with its session; a per-user set indexes digests for bulk revocation.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	sealer cryptoutil.Sealer
	clock  Clock
}

// storedSession is the sealed JSON payload. The raw token is never written.
type storedSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	s := &SessionStore{
		client: opts.Client,
		prefix: opts.Prefix,
		sealer: opts.Sealer,
		clock:  opts.Clock,
	}
	if s.prefix == "" {
		s.prefix = defaultSessionPrefix
	}
	if s.sealer == nil {
		s.sealer = cryptoutil.PlainSealer{}
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	return s
}

func (s *SessionStore) sessionKey(digest string) string { return s.prefix + digest }
func (s *SessionStore) userKey(userID string) string   { return s.prefix + "user:" + userID }

// Create stores a new session for in.TTL.
func (s *SessionStore) Create(ctx context.Context, in ports.CreateSessionInput) (domainauth.Session, error) {
	if in.Token == "" || in.UserID == "" {
		return domainauth.Session{}, errors.New("session token and user id are required")
	}
	if in.TTL <= 0 {
		return domainauth.Session{}, errors.New("session ttl must be positive")
	}

	now := s.clock.Now().UTC()
	rec := storedSession{
		UserID:    in.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(in.TTL),
		IP:        in.IP,
		UserAgent: in.UserAgent,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("marshal session: %w", err)
	}

	digest := cryptoutil.TokenDigest(in.Token)
	sealed, err := s.sealer.Seal(payload, []byte(digest))
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("seal session: %w", err)
	}

	userKey := s.userKey(in.UserID)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.sessionKey(digest), sealed, in.TTL)
		p.SAdd(ctx, userKey, digest)
		// The index lives at least as long as the newest session in it.
		p.ExpireGT(ctx, userKey, in.TTL)
		p.ExpireNX(ctx, userKey, in.TTL)
		return nil
	})
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis create session: %w", err)
	}

	return domainauth.Session{
		Token:     in.Token,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
	}, nil
}

// FindByToken returns the live session for token. It never writes.
func (s *SessionStore) FindByToken(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, apperrors.NotFound("session not found")
	}

	digest := cryptoutil.TokenDigest(token)
	raw, err := s.client.Get(ctx, s.sessionKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, apperrors.NotFound("session not found")
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	payload, err := s.sealer.Open(raw, []byte(digest))
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("open session: %w", err)
	}

	var rec storedSession
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	sess := domainauth.Session{
		Token:     token,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
	}
	// Redis expiry has millisecond granularity; the record's own deadline is authoritative.
	if !sess.ValidAt(s.clock.Now()) {
		return domainauth.Session{}, apperrors.NotFound("session expired")
	}
	return sess, nil
}

// Delete removes the session for token. Unknown tokens are ignored.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.sessionKey(cryptoutil.TokenDigest(token))).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteByUser revokes every session indexed for userID.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, nil
	}

	userKey := s.userKey(userID)
	digests, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	// Keys may hash to different cluster slots, so delete them one by one in a pipeline.
	cmds := make([]*redis.IntCmd, 0, len(digests))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, d := range digests {
			cmds = append(cmds, p.Del(ctx, s.sessionKey(d)))
		}
		p.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis revoke sessions: %w", err)
	}

	var removed int64
	for _, c := range cmds {
		removed += c.Val()
	}
	return removed, nil
}
