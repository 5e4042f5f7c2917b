package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahava-health/ahava-api/internal/data/pgxutil"
	"github.com/ahava-health/ahava-api/internal/domain/audit"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
)

// AuditRepo appends audit trail entries to Postgres.
type AuditRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB, tp TimeProvider) *AuditRepo {
	return &AuditRepo{DB: db, timeProvider: timeProviderOrReal(tp)}
}

// Record inserts e, assigning an ID and timestamp when absent.
func (r *AuditRepo) Record(ctx context.Context, e audit.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.timeProvider.Now().UTC()
	}
	if e.ResourceType == "" {
		e.ResourceType = audit.ResourceAuth
	}

	var userID *string
	if e.UserID != "" {
		userID = &e.UserID
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource_type, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, userID, string(e.Action), e.ResourceType, e.IP, e.UserAgent, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", apperrors.MapDBError(err))
	}
	return nil
}

type auditRow struct {
	ID           string    `db:"id"`
	UserID       *string   `db:"user_id"`
	Action       string    `db:"action"`
	ResourceType string    `db:"resource_type"`
	IP           string    `db:"ip"`
	UserAgent    string    `db:"user_agent"`
	CreatedAt    time.Time `db:"created_at"`
}

// Recent lists up to limit entries, newest first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rowsOut, err := pgxutil.CollectAll[auditRow](ctx, r.DB, `
		SELECT id::text AS id, user_id, action, resource_type, ip, user_agent, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", apperrors.MapDBError(err))
	}

	out := make([]audit.Entry, 0, len(rowsOut))
	for _, row := range rowsOut {
		e := audit.Entry{
			ID:           row.ID,
			Action:       audit.Action(row.Action),
			ResourceType: row.ResourceType,
			IP:           row.IP,
			UserAgent:    row.UserAgent,
			CreatedAt:    row.CreatedAt,
		}
		if row.UserID != nil {
			e.UserID = *row.UserID
		}
		out = append(out, e)
	}
	return out, nil
}
