package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/ahava-health/ahava-api/config"
	"github.com/ahava-health/ahava-api/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	// needsConfig is false for offline commands that never touch a store.
	needsConfig bool
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdin  io.Reader
	Stdout io.Writer
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	if cmd.needsConfig {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			logger.ErrorContext(cmdCtx.Ctx, "load config", "error", err)
			os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
		}
		cmdCtx.Config = cfg
	}

	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			needsConfig: true,
			run:         runMigrations,
		},
		"migrate-status": {
			name:        "migrate-status",
			description: "List embedded migrations and whether each is applied",
			needsConfig: true,
			run:         runMigrationStatus,
		},
		"create-user": {
			name:        "create-user",
			description: "Create an account; the password is read from the terminal or stdin",
			needsConfig: true,
			run:         runCreateUser,
		},
		"set-role": {
			name:        "set-role",
			description: "Assign PATIENT, NURSE, DOCTOR or ADMIN to an account",
			needsConfig: true,
			run:         runSetRole,
		},
		"revoke-sessions": {
			name:        "revoke-sessions",
			description: "Sign an account out everywhere by deleting all of its sessions",
			needsConfig: true,
			run:         runRevokeSessions,
		},
		"purge-sessions": {
			name:        "purge-sessions",
			description: "Delete expired sessions now instead of waiting for the reaper",
			needsConfig: true,
			run:         runPurgeSessions,
		},
		"hash-password": {
			name:        "hash-password",
			description: "Print a credential hash for a password read from the terminal or stdin",
			run:         runHashPassword,
		},
		"inspect-hash": {
			name:        "inspect-hash",
			description: "Describe a stored credential hash and whether login would upgrade it",
			run:         runInspectHash,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: ahava-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-18s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
