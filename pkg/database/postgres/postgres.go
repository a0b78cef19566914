package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     uint16 `env:"POSTGRES_PORT" env-default:"5432"`
	Username string `env:"POSTGRES_USER" env-default:"share"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"share"`
	Database string `env:"POSTGRES_DB"   env-default:"share"`
}

// New opens a connection pool. The registries are hit by concurrent callers,
// so a pool rather than a single pgx.Conn.
func New(ctx context.Context, config Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// InitSchema creates the tables and the uniqueness constraints the grant
// lifecycle depends on. Idempotent.
//
// The two partial unique indexes are load-bearing: duplicate active user
// grants and token collisions are rejected by the store at insert time, not
// by a prior read.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS files (
		id UUID PRIMARY KEY,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		name VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL,
		content_type VARCHAR(128) NOT NULL,
		storage_key VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grants (
		id UUID PRIMARY KEY,
		file_id UUID NOT NULL REFERENCES files(id),
		owner_id INTEGER NOT NULL REFERENCES users(id),
		kind VARCHAR(8) NOT NULL,
		grantee_id INTEGER REFERENCES users(id),
		token VARCHAR(64),
		expires_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT grants_kind_shape CHECK (
			(kind = 'user' AND grantee_id IS NOT NULL AND token IS NULL) OR
			(kind = 'link' AND grantee_id IS NULL AND token IS NOT NULL)
		)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_active_user_pair
		ON grants(file_id, grantee_id) WHERE kind = 'user' AND active;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_grants_token
		ON grants(token) WHERE token IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_grants_owner ON grants(owner_id);
	CREATE INDEX IF NOT EXISTS idx_grants_file ON grants(file_id);

	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		actor_id INTEGER NOT NULL,
		action VARCHAR(16) NOT NULL,
		file_id UUID,
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id, created_at DESC);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
