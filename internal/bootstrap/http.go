package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ahava-health/ahava-api/config"
	httpx "github.com/ahava-health/ahava-api/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RouterServices maps the service container onto the router's dependencies.
func RouterServices(appCfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	rs := httpx.RouterServices{
		Readiness:    services.Readiness,
		CookieName:   appCfg.Auth.CookieName,
		CookieDomain: appCfg.HTTP.CookieDomain,
		TrustProxy:   appCfg.RateLimit.TrustProxy,
		Logger:       logger,
		Metrics:      services.Metrics,
	}
	if services.Auth != nil {
		rs.Auth = services.Auth.Service
		rs.Accounts = services.Auth.Users
		rs.Audit = services.Auth.Audit
		rs.Sessions = services.Auth.ActiveSessions
	}
	if services.RateLimit != nil {
		rs.RateLimit = services.RateLimit.Middleware
	}
	return rs
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := httpx.NewRouter(RouterServices(appCfg, cfg.Services, logger))
	return startServer(logger, handler, appCfg.HTTP)
}

func startServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig) *http.Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer drains in-flight requests before returning.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	if err := cfg.Server.Shutdown(cfg.Context); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
