package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ahava-health/ahava-api/config"
	redisadapter "github.com/ahava-health/ahava-api/internal/adapters/redis"
	"github.com/ahava-health/ahava-api/internal/data"
	"github.com/ahava-health/ahava-api/internal/data/cryptoutil"
	httpx "github.com/ahava-health/ahava-api/internal/http"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ports"
	"github.com/ahava-health/ahava-api/internal/service"
)

// AuthDeps groups what BuildAuth needs. Redis is required only when the configured
// session store is redis.
type AuthDeps struct {
	Config  *config.AppConfig
	DB      *sql.DB
	Redis   redis.UniversalClient
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// AuthComponents is the assembled auth subsystem.
type AuthComponents struct {
	Service *service.AuthService
	Users   *data.UserRepo
	Audit   *data.AuditRepo

	// Purger and ActiveSessions are nil when sessions live in Redis, which expires
	// records natively and cannot count them cheaply.
	Purger         ports.SessionPurger
	ActiveSessions httpx.ActiveSessionCounter
}

// NewPasswordHasher maps password configuration onto a hasher.
func NewPasswordHasher(cfg config.PasswordConfig) *cryptoutil.PasswordHasher {
	algorithm := cryptoutil.AlgorithmPBKDF2SHA256
	if cfg.Algorithm == config.PasswordAlgorithmArgon2id {
		algorithm = cryptoutil.AlgorithmArgon2id
	}
	return cryptoutil.NewPasswordHasher(cryptoutil.PasswordHasherOptions{
		Algorithm:       algorithm,
		Iterations:      cfg.Iterations,
		Argon2MemoryKiB: cfg.Argon2MemoryKiB,
		Argon2Time:      cfg.Argon2Time,
		Argon2Threads:   cfg.Argon2Threads,
		Concurrency:     cfg.Concurrency,
	})
}

// BuildAuth wires stores, hasher and service according to configuration.
func BuildAuth(deps AuthDeps) (*AuthComponents, error) {
	if deps.Config == nil {
		return nil, errors.New("auth config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required for user accounts")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users := data.NewUserRepo(deps.DB)
	auditRepo := data.NewAuditRepo(deps.DB, data.RealTimeProvider{})

	comps := &AuthComponents{Users: users, Audit: auditRepo}
	sessions, err := buildSessionStore(deps, comps, logger)
	if err != nil {
		return nil, err
	}

	authCfg := deps.Config.Auth
	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Users:        users,
		Profiles:     users,
		Sessions:     sessions,
		Hasher:       NewPasswordHasher(authCfg.Password),
		Audit:        auditRepo,
		SessionTTL:   authCfg.SessionTTL,
		TokenBytes:   authCfg.TokenBytes,
		StoreTimeout: authCfg.StoreTimeout,
		Logger:       logger,
		Metrics:      deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	comps.Service = svc

	logger.Info("auth configured",
		"session_store", authCfg.SessionStore,
		"password_algorithm", authCfg.Password.Algorithm,
		"session_ttl", authCfg.SessionTTL.String(),
	)
	return comps, nil
}

//nolint:ireturn // the store kind is chosen at runtime.
func buildSessionStore(deps AuthDeps, comps *AuthComponents, logger *slog.Logger) (ports.SessionStore, error) {
	switch deps.Config.Auth.SessionStore {
	case config.SessionStoreRedis:
		if deps.Redis == nil {
			return nil, errors.New("redis session store selected but redis is not connected")
		}
		sealer, err := NewSessionSealer(deps.Config.SessionEncryptionKey, deps.Config.IsDev, logger)
		if err != nil {
			return nil, err
		}
		return redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
			Client: deps.Redis,
			Sealer: sealer,
		}), nil
	case config.SessionStorePostgres, "":
		repo := data.NewSessionRepo(deps.DB)
		comps.Purger = repo
		comps.ActiveSessions = repo
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", deps.Config.Auth.SessionStore)
	}
}
