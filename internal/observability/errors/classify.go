// Package errors turns errors into low-cardinality labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/ahava-health/ahava-api/internal/errors"
)

// Classify returns a label for tagging metrics and logs. Precedence:
// application code ("app_unavailable"), context outcome ("timeout", "canceled"),
// Postgres SQLSTATE class ("pg_integrity", "pg_connection", "pg_08"), redis
// ("redis_nil", "redis_closed"), then the innermost error type ("net_operror").
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if code := apperrors.GetCode(err); code != "" {
		return "app_" + string(code)
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, redis.Nil):
		return "redis_nil"
	case goerrors.Is(err, redis.ErrClosed):
		return "redis_closed"
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return "pg_" + pgClass(pgErr.Code)
	}

	return typeLabel(err)
}

func pgClass(code string) string {
	switch {
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return "integrity"
	case pgerrcode.IsConnectionException(code):
		return "connection"
	case pgerrcode.IsTransactionRollback(code):
		return "rollback"
	case pgerrcode.IsInsufficientResources(code):
		return "resources"
	case len(code) >= 2:
		return strings.ToLower(code[:2])
	default:
		return "unknown"
	}
}

func typeLabel(err error) string {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
