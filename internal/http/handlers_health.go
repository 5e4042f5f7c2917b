package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	healthResponse = `{"status":"ok"}`
	readyTimeout   = 2 * time.Second
)

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// ReadinessCheck pings one dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// readyHandler runs every check concurrently and reports 503 when any fails.
func readyHandler(checks []ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		statuses := make([]string, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				if err := c.Check(ctx); err != nil {
					statuses[i] = "unavailable"
					logger.WarnContext(ctx, "readiness check failed", "check", c.Name, "error", err)
					return err
				}
				statuses[i] = "ok"
				return nil
			})
		}
		err := g.Wait()

		for i, c := range checks {
			results[c.Name] = statuses[i]
		}
		code := http.StatusOK
		status := "ok"
		if err != nil {
			code = http.StatusServiceUnavailable
			status = "unavailable"
		}
		WriteJSON(w, code, map[string]any{"status": status, "checks": results})
	}
}
