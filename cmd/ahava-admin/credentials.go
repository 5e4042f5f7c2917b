package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/caarlos0/env/v11"
	"golang.org/x/term"

	"github.com/ahava-health/ahava-api/config"
	"github.com/ahava-health/ahava-api/internal/bootstrap"
	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
)

// readPassword is swapped in tests so no terminal is needed.
var readPassword = term.ReadPassword

// readSecret prompts without echo when stdin is a terminal, otherwise it reads one line
// so that scripts can pipe a password in.
func readSecret(cmdCtx *commandContext, prompt string) (string, error) {
	if f, ok := cmdCtx.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if err := writef(os.Stderr, "%s: ", prompt); err != nil {
			return "", err
		}
		pw, err := readPassword(int(f.Fd()))
		_ = writef(os.Stderr, "\n")
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(cmdCtx.Stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// passwordConfig reads only the AUTH_PASSWORD_* settings, so offline commands work
// without database credentials in the environment.
func passwordConfig() (config.PasswordConfig, error) {
	var cfg config.PasswordConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse password config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

func runHashPassword(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	skipStrength := fs.Bool("skip-strength", false, "Hash even if the password fails strength rules")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := passwordConfig()
	if err != nil {
		return err
	}
	plaintext, err := readSecret(cmdCtx, "Password")
	if err != nil {
		return err
	}
	if res := cryptoutil.ValidateStrength(plaintext); !res.Valid && !*skipStrength {
		return fmt.Errorf("password does not meet requirements: %s", strings.Join(res.Violations, "; "))
	}

	encoded, err := bootstrap.NewPasswordHasher(cfg).Hash(cmdCtx.Ctx, plaintext)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "%s\n", encoded)
}

func runInspectHash(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("inspect-hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	encoded := fs.Arg(0)
	if encoded == "" {
		line, err := readSecret(cmdCtx, "Hash")
		if err != nil {
			return err
		}
		encoded = strings.TrimSpace(line)
	}

	cfg, err := passwordConfig()
	if err != nil {
		return err
	}
	return describeHash(cmdCtx.Stdout, encoded, bootstrap.NewPasswordHasher(cfg))
}

func describeHash(w io.Writer, encoded string, hasher *cryptoutil.PasswordHasher) error {
	params, err := cryptoutil.DecodeHash(encoded)
	if err != nil {
		return fmt.Errorf("inspect hash: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{{"algorithm", string(params.Algorithm)}}
	switch params.Algorithm {
	case cryptoutil.AlgorithmArgon2id:
		rows = append(rows,
			[2]string{"memory_kib", fmt.Sprint(params.MemoryKiB)},
			[2]string{"time", fmt.Sprint(params.Time)},
			[2]string{"threads", fmt.Sprint(params.Threads)},
		)
	case cryptoutil.AlgorithmPBKDF2SHA256, cryptoutil.AlgorithmLegacyPBKDF2:
		rows = append(rows, [2]string{"iterations", fmt.Sprint(params.Iterations)})
	}
	if params.Algorithm != cryptoutil.AlgorithmBcrypt {
		rows = append(rows,
			[2]string{"salt_bytes", fmt.Sprint(len(params.Salt))},
			[2]string{"key_bytes", fmt.Sprint(len(params.Key))},
		)
	}
	rows = append(rows, [2]string{"needs_rehash", fmt.Sprint(hasher.NeedsRehash(encoded))})

	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
