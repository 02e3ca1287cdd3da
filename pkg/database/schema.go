package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id     BIGINT PRIMARY KEY,
		username    TEXT,
		first_name  TEXT,
		last_name   TEXT,
		user_type   TEXT,
		rating      DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_rides INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS rides (
		ride_id               BIGSERIAL PRIMARY KEY,
		client_id             BIGINT NOT NULL REFERENCES users(user_id),
		captain_id            BIGINT REFERENCES users(user_id),
		pickup_location       TEXT NOT NULL,
		pickup_latitude       DOUBLE PRECISION,
		pickup_longitude      DOUBLE PRECISION,
		destination_location  TEXT NOT NULL,
		destination_latitude  DOUBLE PRECISION,
		destination_longitude DOUBLE PRECISION,
		ride_type             TEXT NOT NULL DEFAULT 'request',
		status                TEXT NOT NULL DEFAULT 'pending',
		price                 DOUBLE PRECISION,
		passenger_count       INTEGER NOT NULL DEFAULT 1,
		notes                 TEXT,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rides_status ON rides(status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		rating_id  BIGSERIAL PRIMARY KEY,
		ride_id    BIGINT NOT NULL REFERENCES rides(ride_id),
		rater_id   BIGINT NOT NULL REFERENCES users(user_id),
		rated_id   BIGINT NOT NULL REFERENCES users(user_id),
		rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment    TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ratings_ride_rater ON ratings(ride_id, rater_id)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		subscription_id   BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(user_id),
		subscription_type TEXT NOT NULL,
		start_date        TIMESTAMPTZ NOT NULL,
		end_date          TIMESTAMPTZ NOT NULL,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		payment_amount    DOUBLE PRECISION,
		payment_method    TEXT,
		created_by        BIGINT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_active ON subscriptions(user_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS payment_requests (
		request_id        BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(user_id),
		payment_type      TEXT NOT NULL,
		amount            DOUBLE PRECISION NOT NULL,
		description       TEXT,
		status            TEXT NOT NULL DEFAULT 'pending',
		ride_id           BIGINT REFERENCES rides(ride_id),
		subscription_days INTEGER,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		payment_id        BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL REFERENCES users(user_id),
		ride_id           BIGINT REFERENCES rides(ride_id),
		subscription_id   BIGINT REFERENCES subscriptions(subscription_id),
		payment_type      TEXT NOT NULL,
		amount            DOUBLE PRECISION NOT NULL,
		currency          TEXT NOT NULL DEFAULT 'SAR',
		payment_method    TEXT NOT NULL,
		payment_status    TEXT NOT NULL DEFAULT 'pending',
		transaction_id    TEXT,
		payment_proof_url TEXT,
		notes             TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(payment_status, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_ride_settled ON payments(ride_id)
		WHERE ride_id IS NOT NULL AND payment_status IN ('pending', 'completed')`,
	`CREATE TABLE IF NOT EXISTS banned_words (
		id         BIGSERIAL PRIMARY KEY,
		word       TEXT NOT NULL UNIQUE,
		added_by   BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_warnings (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		reason     TEXT,
		warned_by  BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_warnings_user ON user_warnings(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS scheduled_messages (
		id             BIGSERIAL PRIMARY KEY,
		chat_id        BIGINT NOT NULL,
		message_text   TEXT NOT NULL,
		interval_hours INTEGER NOT NULL,
		duration_days  INTEGER NOT NULL,
		created_by     BIGINT NOT NULL,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		last_sent      TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates missing tables and seeds banned words into an empty table
func Migrate(ctx context.Context, db *sql.DB, seedWords []string) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if len(seedWords) == 0 {
		return nil
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO banned_words (word)
		SELECT unnest($1::text[])
		WHERE NOT EXISTS (SELECT 1 FROM banned_words)
		ON CONFLICT (word) DO NOTHING
	`, pq.Array(seedWords))
	if err != nil {
		return fmt.Errorf("failed to seed banned words: %w", err)
	}
	return nil
}
