// Package testutil provisions Postgres schemas and Redis databases for integration tests.
// Tests skip when the infrastructure is unreachable unless TEST_REQUIRE_INFRA (or the
// per-store TEST_REQUIRE_DB / TEST_REQUIRE_REDIS) is set.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/ahava-health/ahava-api/internal/migrate"
)

const (
	pingTimeout   = 2 * time.Second
	schemaTimeout = 10 * time.Second
	redisLockTTL  = 30 * time.Minute
	redisMaxDB    = 15
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Cleanup(func())
	Skip(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// TestDBConfig locates the integration database. Port 55432 matches the local
// docker compose test profile; CI sets TEST_DB_PORT=5432.
type TestDBConfig struct {
	Host     string `env:"TEST_DB_HOST"     envDefault:"localhost"`
	Port     string `env:"TEST_DB_PORT"     envDefault:"55432"`
	User     string `env:"TEST_DB_USER"     envDefault:"ahava"`
	Password string `env:"TEST_DB_PASSWORD" envDefault:"ahava"`
	DBName   string `env:"TEST_DB_NAME"     envDefault:"ahava"`
	SSLMode  string `env:"DB_SSL_MODE"      envDefault:"disable"`
}

// DefaultTestDBConfig reads TestDBConfig from the environment.
func DefaultTestDBConfig() TestDBConfig {
	var cfg TestDBConfig
	if err := env.Parse(&cfg); err != nil {
		// Only string fields, so parsing cannot fail on values.
		panic(fmt.Sprintf("testutil: parse db config: %v", err))
	}
	return cfg
}

// DSN renders the connection URL, optionally pinning search_path to schema.
func (c TestDBConfig) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SetupEphemeralSchemaDB opens a connection scoped to a fresh schema, applies every
// migration there, and drops the schema when the test ends.
func SetupEphemeralSchemaDB(t TestingTB) *sql.DB {
	t.Helper()
	cfg := DefaultTestDBConfig()

	admin, err := openPinged(cfg.DSN(""))
	if err != nil {
		skipOrFail(t, requireDB(), "test database not available: %v", err)
	}

	schema := "t_" + strings.ReplaceAll(uuid.NewString()[:13], "-", "")
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeQuietly(t, "admin db", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db, err := openPinged(cfg.DSN(schema))
	t.Cleanup(func() {
		if db != nil {
			closeQuietly(t, "schema db", db)
		}
		dropCtx, dropCancel := context.WithTimeout(context.Background(), schemaTimeout)
		defer dropCancel()
		if _, dropErr := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); dropErr != nil {
			t.Logf("drop schema %s: %v", schema, dropErr)
		}
		closeQuietly(t, "admin db", admin)
	})
	if err != nil {
		t.Fatalf("open schema %s: %v", schema, err)
	}
	db.SetMaxOpenConns(10)

	if _, err := migrate.Run(ctx, db, nil); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	t.Logf("using ephemeral schema %s", schema)
	return db
}

func openPinged(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// redisCandidates lists the addresses probed when REDIS_ADDR is unset: the compose
// service name used in CI, a default local port, and the local test profile port.
func redisCandidates() []string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return []string{addr}
	}
	return []string{"redis:6379", "localhost:6379", "localhost:56379"}
}

// SetupTestRedis returns a client on a Redis database reserved for this test.
// Reservations are lock keys in DB 0, so FlushDB on the reserved database leaves
// other packages' locks alone. TEST_REDIS_DB bypasses the reservation.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	var addr string
	var lastErr error
	for _, candidate := range redisCandidates() {
		if lastErr = pingRedis(candidate); lastErr == nil {
			addr = candidate
			break
		}
	}
	if addr == "" {
		skipOrFail(t, requireRedis(), "redis not available for testing: %v", lastErr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		closeQuietly(t, "redis client", client)
		skipOrFail(t, requireRedis(), "redis flush at %s: %v", addr, err)
	}
	t.Cleanup(func() { closeQuietly(t, "redis client", client) })
	return client
}

func pingRedis(addr string) error {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = c.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return c.Ping(ctx).Err()
}

type redisOverride struct {
	DB *int `env:"TEST_REDIS_DB"`
}

func reserveRedisDB(t TestingTB, addr string) int {
	if v, err := env.ParseAs[redisOverride](); err == nil && v.DB != nil && *v.DB >= 0 {
		return *v.DB
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer closeQuietly(t, "redis meta client", meta)

	owner := fmt.Sprintf("%d:%s", os.Getpid(), uuid.NewString())
	for i := 1; i <= redisMaxDB; i++ {
		key := fmt.Sprintf("ahava:testutil:db_lock:%d", i)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		ok, err := meta.SetNX(ctx, key, owner, redisLockTTL).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() { releaseRedisLock(t, addr, key) })
		return i
	}
	t.Logf("no free redis database at %s; sharing DB 1", addr)
	return 1
}

func releaseRedisLock(t TestingTB, addr, key string) {
	c := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer closeQuietly(t, "redis lock client", c)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Del(ctx, key).Err(); err != nil {
		t.Logf("release redis lock %s: %v", key, err)
	}
}

func skipOrFail(t TestingTB, required bool, format string, args ...any) {
	t.Helper()
	if required {
		t.Fatalf(format, args...)
	}
	t.Skip(fmt.Sprintf(format, args...))
}

func closeQuietly(t TestingTB, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }
