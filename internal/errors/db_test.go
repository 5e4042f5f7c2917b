package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name        string
		pgErr       *pgconn.PgError
		wantField   string
		wantMessage string
	}{
		{
			name: "email from column name",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.UniqueViolation,
				ColumnName: "email",
			},
			wantField:   "email",
			wantMessage: "An account with this email already exists.",
		},
		{
			name: "email from Detail message",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_email_key",
				Detail:         `Key (email)=(jane@example.com) already exists.`,
			},
			wantField:   "email",
			wantMessage: "An account with this email already exists.",
		},
		{
			name: "email inferred from constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_email_key",
			},
			wantField:   "email",
			wantMessage: "An account with this email already exists.",
		},
		{
			name: "ambiguous constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "sessions_token_digest_key",
			},
			wantField:   "",
			wantMessage: "This value already exists. Please choose a different one.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Fatalf("MapDBError() should be Conflict, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %q, want %q", field, tt.wantField)
			}
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Message != tt.wantMessage {
				t.Errorf("MapDBError() message = %q, want %q", appErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapDBError_OtherPgErrors(t *testing.T) {
	tests := []struct {
		name     string
		pgErr    *pgconn.PgError
		wantCode ErrorCode
	}{
		{
			name:     "foreign key",
			pgErr:    &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, TableName: "profiles"},
			wantCode: ErrCodeForeignKey,
		},
		{
			name:     "check violation",
			pgErr:    &pgconn.PgError{Code: pgerrcode.CheckViolation, ColumnName: "role"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "not null",
			pgErr:    &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "email"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "unknown",
			pgErr:    &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_StandardError(t *testing.T) {
	stdErr := errors.New("connection refused")
	if err := MapDBError(stdErr); !errors.Is(err, stdErr) || GetCode(err) != "" {
		t.Errorf("MapDBError() should pass through unrecognised errors, got %v", err)
	}
}

func TestMapTableToDomain(t *testing.T) {
	tests := map[string]string{
		"users":       "user",
		" Profiles ":  "profile",
		"sessions":    "session",
		"audit_logs":  "audit entry",
		"":            "item",
		"other_table": "other table",
	}
	for in, want := range tests {
		if got := mapTableToDomain(in); got != want {
			t.Errorf("mapTableToDomain(%q) = %q, want %q", in, got, want)
		}
	}
}
