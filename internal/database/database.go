// Package database opens the Postgres pool and applies the embedded schema.
package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	defaultConnectAttempts = 5
	connectBackoffBase     = 250 * time.Millisecond
)

type Options struct {
	URL      string
	MaxConns int32
	MinConns int32
	// ConnectAttempts bounds the startup ping; zero means the default.
	ConnectAttempts uint64
}

type DB struct {
	Pool *pgxpool.Pool
}

func Open(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = defaultConnectAttempts
	}
	if err := pingWithRetry(ctx, pool.Ping, attempts, connectBackoffBase); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}

	slog.Info("database connected", "max_conns", cfg.MaxConns, "min_conns", cfg.MinConns)
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// pingWithRetry waits for the database to accept connections, backing off
// exponentially between attempts.
func pingWithRetry(ctx context.Context, ping func(context.Context) error, attempts uint64, base time.Duration) error {
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			slog.Warn("database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
