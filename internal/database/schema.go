package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent so Migrate can run on every start.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS friend_lists (
	owner_id UUID PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS friend_list_members (
	owner_id   UUID NOT NULL REFERENCES friend_lists (owner_id) ON DELETE CASCADE,
	friend_id  UUID NOT NULL REFERENCES friend_lists (owner_id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (owner_id, friend_id),
	CHECK (owner_id <> friend_id)
);

CREATE TABLE IF NOT EXISTS friend_requests (
	id          UUID PRIMARY KEY,
	sender_id   UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	receiver_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	status      TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined', 'cancelled')),
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	CHECK (sender_id <> receiver_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS friend_requests_active_pair
	ON friend_requests (sender_id, receiver_id) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS friend_requests_sender ON friend_requests (sender_id, status);
CREATE INDEX IF NOT EXISTS friend_requests_receiver ON friend_requests (receiver_id, status);

CREATE TABLE IF NOT EXISTS friend_events (
	id          BIGSERIAL PRIMARY KEY,
	event_type  TEXT NOT NULL,
	request_id  UUID,
	actor_id    UUID NOT NULL,
	sender_id   UUID NOT NULL,
	receiver_id UUID NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS friend_events_sender ON friend_events (sender_id, occurred_at);
CREATE INDEX IF NOT EXISTS friend_events_receiver ON friend_events (receiver_id, occurred_at);
`

// Migrate creates the tables used by FriendStore and EventLog.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
