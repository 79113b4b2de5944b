package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"warbler/internal/config"
)

func Connect(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info().Msg("Connected to database successfully")
	return db, nil
}

// Migrate creates the schema if it does not exist yet. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               BIGSERIAL PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	email            TEXT NOT NULL UNIQUE,
	password_hashed  TEXT NOT NULL,
	bio              TEXT,
	location         TEXT,
	image_url        TEXT NOT NULL DEFAULT '/static/images/default-pic.png',
	image_key        TEXT,
	header_image_url TEXT NOT NULL DEFAULT '/static/images/warbler-hero.jpg',
	header_image_key TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id        BIGSERIAL PRIMARY KEY,
	text      VARCHAR(140) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	user_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_user_timestamp ON messages (user_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS follows (
	follower_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	followed_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (follower_id, followed_id),
	CHECK (follower_id <> followed_id)
);

CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows (followed_id);

CREATE TABLE IF NOT EXISTS likes (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, message_id)
);
`
