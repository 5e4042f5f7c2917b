package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
	"github.com/ahava-health/ahava-api/internal/data/pgxutil"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/ports"
)

// DefaultSessionPurgeBatch bounds a single DeleteExpired call when no limit is given.
const DefaultSessionPurgeBatch = 1000

// SessionRepo stores sessions in Postgres keyed by token digest.
// It implements ports.SessionStore and ports.SessionPurger.
type SessionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSessionRepo creates a new SessionRepo with real time provider.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewSessionRepoWithTimeProvider creates a SessionRepo with a custom time provider (useful for tests).
func NewSessionRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SessionRepo {
	return &SessionRepo{DB: db, timeProvider: timeProviderOrReal(tp)}
}

type sessionRow struct {
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	IP        string    `db:"ip"`
	UserAgent string    `db:"user_agent"`
}

// Create persists a session valid for in.TTL from now.
func (r *SessionRepo) Create(ctx context.Context, in ports.CreateSessionInput) (domainauth.Session, error) {
	if in.Token == "" || in.UserID == "" {
		return domainauth.Session{}, errors.New("session token and user id are required")
	}
	if in.TTL <= 0 {
		return domainauth.Session{}, errors.New("session ttl must be positive")
	}

	now := r.timeProvider.Now().UTC()
	sess := domainauth.Session{
		Token:     in.Token,
		UserID:    in.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(in.TTL),
		IP:        in.IP,
		UserAgent: in.UserAgent,
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions (token_digest, user_id, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cryptoutil.TokenDigest(in.Token), sess.UserID, sess.CreatedAt, sess.ExpiresAt, sess.IP, sess.UserAgent)
	if err != nil {
		return domainauth.Session{}, apperrors.MapDBError(err)
	}
	return sess, nil
}

// FindByToken returns the unexpired session for token.
func (r *SessionRepo) FindByToken(ctx context.Context, token string) (domainauth.Session, error) {
	if token == "" {
		return domainauth.Session{}, apperrors.NotFound("session not found")
	}

	row, err := pgxutil.CollectOne[sessionRow](ctx, r.DB, `
		SELECT user_id, created_at, expires_at, ip, user_agent
		FROM sessions
		WHERE token_digest = $1 AND expires_at > $2
	`, cryptoutil.TokenDigest(token), r.timeProvider.Now().UTC())
	if err != nil {
		return domainauth.Session{}, apperrors.MapDBError(err)
	}

	return domainauth.Session{
		Token:     token,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
		IP:        row.IP,
		UserAgent: row.UserAgent,
	}, nil
}

// Delete removes the session for token. Unknown tokens are ignored.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token_digest = $1`, cryptoutil.TokenDigest(token)); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// DeleteByUser removes every session owned by userID.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes up to limit sessions whose expiry is at or before before.
// Callers loop until fewer than limit rows come back.
func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = DefaultSessionPurgeBatch
	}
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE id IN (
			SELECT id FROM sessions
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", apperrors.MapDBError(err))
	}
	return res.RowsAffected()
}

// CountActive returns the number of sessions that have not expired.
func (r *SessionRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM sessions WHERE expires_at > $1`, r.timeProvider.Now().UTC()).Scan(&n)
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return n, nil
}
