package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	"github.com/ahava-health/ahava-api/internal/service"
)

const accountCommandTimeout = 30 * time.Second

type createUserOptions struct {
	Email string
	Name  string
	Role  domainauth.Role
}

type emailOptions struct {
	Email string
	Role  domainauth.Role
	Yes   bool
}

func parseRoleFlag(raw string) (domainauth.Role, error) {
	role, ok := domainauth.ParseRole(raw)
	if !ok {
		return "", fmt.Errorf("--role must be one of PATIENT, NURSE, DOCTOR, ADMIN (got %q)", raw)
	}
	return role, nil
}

func parseCreateUserFlags(args []string) (createUserOptions, error) {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts createUserOptions
	var role string
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Name, "name", "", "Display name")
	fs.StringVar(&role, "role", string(domainauth.RolePatient), "Initial role")
	if err := fs.Parse(args); err != nil {
		return createUserOptions{}, err
	}

	if strings.TrimSpace(opts.Email) == "" {
		return createUserOptions{}, errors.New("--email is required")
	}
	r, err := parseRoleFlag(role)
	if err != nil {
		return createUserOptions{}, err
	}
	opts.Role = r
	return opts, nil
}

func parseEmailFlags(name string, args []string, withRole bool) (emailOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts emailOptions
	var role string
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	if withRole {
		fs.StringVar(&role, "role", "", "Role to assign (required)")
	} else {
		fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	}
	if err := fs.Parse(args); err != nil {
		return emailOptions{}, err
	}

	if strings.TrimSpace(opts.Email) == "" {
		return emailOptions{}, errors.New("--email is required")
	}
	if withRole {
		r, err := parseRoleFlag(role)
		if err != nil {
			return emailOptions{}, err
		}
		opts.Role = r
	}
	return opts, nil
}

func runCreateUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateUserFlags(args)
	if err != nil {
		return err
	}
	password, err := readSecret(cmdCtx, "Password for "+opts.Email)
	if err != nil {
		return err
	}

	in, err := connectAuth(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, in)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, accountCommandTimeout)
	defer cancel()

	user, err := in.Auth.Service.Register(ctx, service.RegisterInput{
		Email:    opts.Email,
		Password: password,
		Name:     opts.Name,
		Role:     opts.Role,
	})
	if err != nil {
		var weak *service.WeakPasswordError
		if errors.As(err, &weak) {
			return fmt.Errorf("password does not meet requirements: %s", strings.Join(weak.Violations, "; "))
		}
		return err
	}
	return writef(cmdCtx.Stdout, "created %s (%s) with role %s\n", user.Email, user.ID, opts.Role)
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	opts, err := parseEmailFlags("set-role", args, true)
	if err != nil {
		return err
	}

	in, err := connectAuth(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, in)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, accountCommandTimeout)
	defer cancel()

	if err := in.Auth.Service.SetRole(ctx, opts.Email, opts.Role); err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "%s is now %s\n", domainauth.NormalizeEmail(opts.Email), opts.Role)
}

func runRevokeSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseEmailFlags("revoke-sessions", args, false)
	if err != nil {
		return err
	}
	if !opts.Yes {
		if confirmErr := confirm(cmdCtx, "sign "+opts.Email+" out of every device"); confirmErr != nil {
			return confirmErr
		}
	}

	in, err := connectAuth(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, in)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, accountCommandTimeout)
	defer cancel()

	n, err := in.Auth.Service.RevokeSessions(ctx, opts.Email)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "revoked %d session(s)\n", n)
}

func runPurgeSessions(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("purge-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	batch := fs.Int("batch", cmdCtx.Config.Reaper.BatchSize, "Maximum rows deleted per statement")
	timeout := fs.Duration("timeout", 5*time.Minute, "Maximum duration of the purge")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batch < 1 {
		return errors.New("--batch must be at least 1")
	}

	in, err := connectAuth(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, in)

	if in.Auth.Purger == nil {
		return writef(cmdCtx.Stdout, "sessions are stored in redis and expire on their own; nothing to purge\n")
	}

	reaperCfg := cmdCtx.Config.Reaper
	reaperCfg.BatchSize = *batch
	reaper, err := service.NewSessionReaper(service.SessionReaperOptions{
		Purger: in.Auth.Purger,
		Config: reaperCfg,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, *timeout)
	defer cancel()
	res, err := reaper.RunOnce(ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "deleted %d expired session(s) in %s\n", res.SessionsDeleted, res.Elapsed.Round(time.Millisecond))
}

func confirm(cmdCtx *commandContext, action string) error {
	if err := writef(cmdCtx.Stdout, "About to %s. Continue? [y/N]: ", action); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.Stdin).ReadString('\n')
	if err != nil && resp == "" {
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
