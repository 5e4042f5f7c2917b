package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ahava-health/ahava-api/internal/bootstrap"
	"github.com/ahava-health/ahava-api/internal/migrate"
)

const defaultMigrationTimeout = 5 * time.Minute

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(name string, args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")
	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate", args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	in, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, in)

	cmdCtx.Logger.Info("running database migrations")
	return bootstrap.RunMigrations(ctx, in.DB, cmdCtx.Logger)
}

func runMigrationStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate-status", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	in, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, in)

	migrations, err := migrate.Status(ctx, in.DB)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return printMigrationStatus(cmdCtx, migrations)
}

func printMigrationStatus(cmdCtx *commandContext, migrations []migrate.Migration) error {
	tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "VERSION\tSTATE"); err != nil {
		return err
	}
	pending := 0
	for _, m := range migrations {
		state := "applied"
		if !m.Applied {
			state = "pending"
			pending++
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", m.Version, state); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "\n%d migration(s), %d pending\n", len(migrations), pending)
}
