package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	domain "github.com/ahava-health/ahava-api/internal/domain/ratelimit"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ports"
)

// AuthAPI is the full auth surface used by the router. *service.AuthService satisfies it.
type AuthAPI interface {
	AuthServiceInterface
	Authenticator
	RoleResolver
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthAPI
	Accounts ports.AccountStats
	Audit    ports.AuditReader
	Sessions ActiveSessionCounter // Optional: nil when sessions live in Redis

	// RateLimit is nil when admission control is disabled.
	RateLimit *RateLimit

	Readiness []ReadinessCheck

	CookieName   string
	CookieDomain string
	TrustProxy   bool

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	gate := NewGate(GateOptions{
		Auth:       services.Auth,
		Roles:      services.Auth,
		CookieName: services.CookieName,
		Logger:     logger,
		Metrics:    services.Metrics,
	})
	limit := func(t domain.Tier) func(http.Handler) http.Handler {
		if services.RateLimit == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return services.RateLimit.Tier(t)
	}

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		CookieName:   services.CookieName,
		CookieDomain: services.CookieDomain,
		TrustProxy:   services.TrustProxy,
		Logger:       logger,
	}
	sessionHandlers := &SessionHandlers{Roles: services.Auth, Logger: logger}
	adminHandlers := &AdminHandlers{
		Accounts: services.Accounts,
		Audit:    services.Audit,
		Sessions: services.Sessions,
		Logger:   logger,
	}

	// Public endpoints are limited per IP before any work is done.
	mux.Handle("POST /api/auth/signup", Chain(http.HandlerFunc(authHandlers.Signup), limit(domain.TierStrict)))
	mux.Handle("POST /api/auth/login", Chain(http.HandlerFunc(authHandlers.Login), limit(domain.TierStrict)))
	mux.Handle("POST /api/auth/logout", Chain(http.HandlerFunc(authHandlers.Logout), limit(domain.TierStrict)))

	// Gated endpoints are limited after authentication so clients are keyed per user.
	mux.Handle("GET /api/session", Chain(http.HandlerFunc(sessionHandlers.Status),
		gate.Authenticate,
		limit(domain.TierRelaxed),
	))
	if services.Accounts != nil {
		mux.Handle("GET /api/admin/overview", Chain(http.HandlerFunc(adminHandlers.Overview),
			gate.Authenticate,
			limit(domain.TierNormal),
			gate.RequireRole(domainauth.RoleAdmin),
		))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Readiness, logger))

	return Chain(mux,
		RequestID(),
		Logging(logger),
		Recover(logger),
	)
}
