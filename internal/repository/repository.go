// Package repository provides the PostgreSQL-backed user record store.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the connection pool. Zero fields keep the pgxpool defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// Repository is the user record store.
type Repository struct {
	pool *pgxpool.Pool
}

// New opens a pool against databaseURL and pings it once, so an
// unreachable database fails here rather than on the first request.
func New(ctx context.Context, databaseURL string, opts PoolOptions) (*Repository, error) {
	poolConfig, err := newPoolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create user store pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping user store: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func newPoolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if poolConfig.MinConns > poolConfig.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", poolConfig.MinConns, poolConfig.MaxConns)
	}

	return poolConfig, nil
}

// Ping reports whether the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool exposes the pool for migrations and test fixtures.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
