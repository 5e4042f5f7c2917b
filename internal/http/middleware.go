package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/observability/metrics"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-Id"

// Gate outcomes reported on the auth.gate metric.
const (
	gateAuthorized = "authorized"
	gateNoToken    = "no_token"
	gateInvalid    = "invalid"
	gateForbidden  = "forbidden"
	gateError      = "error"
)

// RequestID assigns a request ID, honouring a well-formed incoming X-Request-Id.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{Code: http.StatusInternalServerError, Error: msgInternal})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticator resolves a session token to an identity without side effects.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domainauth.Identity, error)
}

// RoleResolver loads the role of an authenticated user. A user without a profile has role "".
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (domainauth.Role, error)
}

// GateOptions configures the authentication gate.
type GateOptions struct {
	Auth       Authenticator
	Roles      RoleResolver
	CookieName string
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Gate authenticates requests and enforces roles.
type Gate struct {
	auth       Authenticator
	roles      RoleResolver
	cookieName string
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewGate constructs a Gate. CookieName defaults to ahava_auth_session.
func NewGate(opts GateOptions) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &Gate{
		auth:       opts.Auth,
		roles:      opts.Roles,
		cookieName: name,
		logger:     logger.With("component", "auth_gate"),
		metrics:    opts.Metrics,
	}
}

// Authenticate rejects requests without a valid session with 401 and attaches the
// identity to the request context otherwise. Store failures yield 500.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r, g.cookieName)
		if token == "" {
			metrics.EmitGate(g.metrics, gateNoToken)
			WriteError(w, ErrorParams{Code: http.StatusUnauthorized, Error: msgUnauthorized})
			return
		}

		id, err := g.auth.Authenticate(r.Context(), token)
		switch {
		case err == nil:
		case apperrors.IsUnauthenticated(err):
			metrics.EmitGate(g.metrics, gateInvalid)
			WriteError(w, ErrorParams{Code: http.StatusUnauthorized, Error: msgUnauthorized})
			return
		default:
			metrics.EmitGate(g.metrics, gateError)
			g.logger.ErrorContext(r.Context(), "authentication failed",
				"session", cryptoutil.ShortDigest(token),
				"request_id", RequestIDFromContext(r.Context()),
				"error", err,
			)
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, Error: msgInternal})
			return
		}

		metrics.EmitGate(g.metrics, gateAuthorized)
		next.ServeHTTP(w, r.WithContext(SetIdentityInContext(r.Context(), id)))
	})
}

// RequireRole admits only identities whose role is one of allowed. It must run after
// Authenticate; a request without an identity gets 401.
func (g *Gate) RequireRole(allowed ...domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, ErrorParams{Code: http.StatusUnauthorized, Error: msgUnauthorized})
				return
			}

			role, err := g.roles.RoleOf(r.Context(), id.UserID)
			if err != nil {
				metrics.EmitGate(g.metrics, gateError)
				g.logger.ErrorContext(r.Context(), "role lookup failed",
					"user_id", id.UserID,
					"request_id", RequestIDFromContext(r.Context()),
					"error", err,
				)
				WriteError(w, ErrorParams{Code: http.StatusInternalServerError, Error: msgInternal})
				return
			}
			if !role.In(allowed...) {
				metrics.EmitGate(g.metrics, gateForbidden)
				WriteError(w, ErrorParams{Code: http.StatusForbidden, Error: msgForbidden})
				return
			}

			id.Role = role
			next.ServeHTTP(w, r.WithContext(SetIdentityInContext(r.Context(), id)))
		})
	}
}

// tokenFromRequest reads the session cookie, then an Authorization bearer token.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// Chain applies middlewares so that the first listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
