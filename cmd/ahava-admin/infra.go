package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ahava-health/ahava-api/config"
	"github.com/ahava-health/ahava-api/internal/bootstrap"
)

// infra holds the connections a command opened. Close releases all of them.
type infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
	Auth  *bootstrap.AuthComponents
}

func (i *infra) Close() error {
	var closeErr error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

// connectDB opens Postgres only.
func connectDB(cmdCtx *commandContext) (*infra, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return &infra{DB: db}, nil
}

// connectAuth opens Postgres, Redis when sessions live there, and assembles the auth service.
func connectAuth(cmdCtx *commandContext) (*infra, error) {
	in, err := connectDB(cmdCtx)
	if err != nil {
		return nil, err
	}

	if cmdCtx.Config.Auth.SessionStore == config.SessionStoreRedis {
		client, redisErr := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if redisErr != nil {
			return nil, errors.Join(fmt.Errorf("connect redis: %w", redisErr), in.Close())
		}
		in.Redis = client
	}

	auth, err := bootstrap.BuildAuth(bootstrap.AuthDeps{
		Config: &cmdCtx.Config,
		DB:     in.DB,
		Redis:  in.Redis,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, errors.Join(err, in.Close())
	}
	in.Auth = auth
	return in, nil
}

func closeInfra(cmdCtx *commandContext, in *infra) {
	if err := in.Close(); err != nil {
		cmdCtx.Logger.Warn("close connections failed", "error", err)
	}
}
