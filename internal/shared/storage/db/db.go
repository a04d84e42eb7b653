package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"portfolio-api/internal/shared/telemetry"
)

const driverName = "pgx"

// Role selects pool sizing for the process that owns the pool.
type Role string

const (
	RoleServer  Role = "server"
	RoleLambda  Role = "lambda"
	RoleMigrate Role = "migrate"
)

// PoolOptions sizes a connection pool.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PingTimeout time.Duration
}

var rolePools = map[Role]PoolOptions{
	RoleServer:  {MaxOpen: 10, MaxIdle: 5, MaxLifetime: time.Hour, MaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	RoleLambda:  {MaxOpen: 2, MaxIdle: 1, MaxLifetime: 15 * time.Minute, MaxIdleTime: 30 * time.Second, PingTimeout: 3 * time.Second},
	RoleMigrate: {MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Hour, MaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
}

var (
	openDB = sql.Open
	shared = &lazyPool{}
)

// RuntimeRole is RoleLambda inside an AWS Lambda execution environment and
// RoleServer elsewhere.
func RuntimeRole() Role {
	if strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != "" {
		return RoleLambda
	}
	return RoleServer
}

// PoolOptionsFor returns the sizing for role with DB_* overrides applied.
func PoolOptionsFor(role Role) PoolOptions {
	opts, ok := rolePools[role]
	if !ok {
		opts = rolePools[RoleServer]
	}
	overrideInt(&opts.MaxOpen, "DB_MAX_OPEN_CONNS")
	overrideInt(&opts.MaxIdle, "DB_MAX_IDLE_CONNS")
	overrideDuration(&opts.MaxLifetime, "DB_CONN_MAX_LIFETIME")
	overrideDuration(&opts.MaxIdleTime, "DB_CONN_MAX_IDLE_TIME")
	overrideDuration(&opts.PingTimeout, "DB_PING_TIMEOUT")
	return opts
}

// Open returns a pool for the blob table. Lambda invocations in one
// execution environment share a single pool; other roles get their own.
func Open(ctx context.Context, databaseURL string, role Role) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	opts := PoolOptionsFor(role)
	dial := func(ctx context.Context) (*sql.DB, error) {
		return connect(ctx, databaseURL, opts)
	}
	if role == RoleLambda {
		return shared.get(ctx, dial)
	}
	return dial(ctx)
}

func connect(ctx context.Context, databaseURL string, opts PoolOptions) (*sql.DB, error) {
	database, err := openDB(driverName, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(opts.MaxOpen)
	database.SetMaxIdleConns(opts.MaxIdle)
	database.SetConnMaxLifetime(opts.MaxLifetime)
	database.SetConnMaxIdleTime(opts.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	telemetry.Info("db: connected", map[string]any{
		"max_open": opts.MaxOpen,
		"max_idle": opts.MaxIdle,
	})
	return database, nil
}

// lazyPool dials once and hands the same *sql.DB to every caller. Callers
// arriving during a dial wait for it; a failed dial is retried by the next
// caller.
type lazyPool struct {
	mu      sync.Mutex
	db      *sql.DB
	pending chan struct{}
}

func (p *lazyPool) get(ctx context.Context, dial func(context.Context) (*sql.DB, error)) (*sql.DB, error) {
	for {
		p.mu.Lock()
		if p.db != nil {
			database := p.db
			p.mu.Unlock()
			return database, nil
		}
		if wait := p.pending; wait != nil {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		p.pending = done
		p.mu.Unlock()

		database, err := dial(ctx)

		p.mu.Lock()
		if err == nil {
			p.db = database
		}
		p.pending = nil
		close(done)
		p.mu.Unlock()

		if err != nil {
			return nil, err
		}
		telemetry.Info("db: shared pool ready", nil)
		return database, nil
	}
}

func overrideInt(dst *int, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("db: ignoring invalid pool setting", map[string]any{"key": key, "value": raw})
		return
	}
	*dst = val
}

func overrideDuration(dst *time.Duration, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("db: ignoring invalid pool setting", map[string]any{"key": key, "value": raw})
		return
	}
	*dst = val
}
