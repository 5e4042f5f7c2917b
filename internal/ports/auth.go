// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/data and internal/adapters; orchestration in internal/service.
//
// Lookups that find nothing return an error for which errors.IsNotFound
// (internal/errors) reports true. Any other error is a store failure.
package ports

import (
	"context"
	"time"

	"github.com/ahava-health/ahava-api/internal/domain/audit"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
)

// CreateSessionInput groups parameters for persisting a new session.
type CreateSessionInput struct {
	UserID    string
	Token     string
	TTL       time.Duration
	IP        string
	UserAgent string
}

// SessionStore persists and retrieves sessions keyed by their opaque token.
type SessionStore interface {
	Create(ctx context.Context, in CreateSessionInput) (domainauth.Session, error)
	FindByToken(ctx context.Context, token string) (domainauth.Session, error)
	// Delete is idempotent: deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	// DeleteByUser revokes every session of a user and returns how many were removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// SessionPurger removes expired sessions in bounded batches.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u domainauth.User) error
	FindByID(ctx context.Context, id string) (domainauth.User, error)
	FindByEmail(ctx context.Context, email string) (domainauth.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// AccountCreator is implemented by stores that can write a user and its
// profile atomically. Register prefers it over two separate writes.
type AccountCreator interface {
	CreateAccount(ctx context.Context, u domainauth.User, role domainauth.Role) error
}

// ProfileStore holds per-user authorization data.
type ProfileStore interface {
	Upsert(ctx context.Context, p domainauth.Profile) error
	FindRole(ctx context.Context, userID string) (domainauth.Role, error)
}

// AuditLogger records audit trail entries.
type AuditLogger interface {
	Record(ctx context.Context, e audit.Entry) error
}

// AccountStats reports aggregate account counts for the admin overview.
type AccountStats interface {
	CountByRole(ctx context.Context) (map[domainauth.Role]int64, error)
}

// AuditReader lists the most recent audit entries, newest first.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}
