package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/ahava-health/ahava-api/internal/migrate"
)

// RunMigrations applies pending schema migrations and logs each applied version.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	applied, err := migrate.Run(ctx, db, logger)
	if err != nil {
		return err
	}
	if logger != nil && len(applied) > 0 {
		logger.InfoContext(ctx, "migrations applied", "versions", applied)
	}
	return nil
}
