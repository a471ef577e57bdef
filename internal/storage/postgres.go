// Package storage provides the result cache backends and the Postgres
// connection and repository for contact signups.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scor-analyzer/internal/config"
)

const (
	applicationName = "scor-analyzer"

	// signups arrive a few times a day, idle connections are released quickly
	signupConnIdleTime = 5 * time.Minute
	signupConnLifetime = 30 * time.Minute
)

// PostgresDB holds the connection pool behind the signup repository
type PostgresDB struct {
	pool *pgxpool.Pool
}

// signupPoolConfig maps the signup database settings onto a pool configuration
func signupPoolConfig(cfg *config.PostgresConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres settings: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	minConns := cfg.MinConnections
	if minConns < 0 {
		minConns = 0
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	poolConfig.MaxConns = int32(maxConns) // #nosec G115 - clamped above, small
	poolConfig.MinConns = int32(minConns) // #nosec G115 - clamped above, small
	poolConfig.MaxConnIdleTime = signupConnIdleTime
	poolConfig.MaxConnLifetime = signupConnLifetime

	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	return poolConfig, nil
}

// NewPostgresDB connects the signup pool and checks the server answers
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := signupPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create signup pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("signup database unreachable at %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close releases the pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping is the health probe of the signup database
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
