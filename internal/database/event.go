package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/huddle/internal/models"
)

// EventLog persists friend events as relationship history.
type EventLog struct {
	pool *pgxpool.Pool
}

func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool}
}

// InsertFriendEvents writes events in a single transaction.
func (l *EventLog) InsertFriendEvents(ctx context.Context, events []models.FriendEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := `
		INSERT INTO friend_events (event_type, request_id, actor_id, sender_id, receiver_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			var requestID *uuid.UUID
			if ev.RequestID != uuid.Nil {
				id := ev.RequestID
				requestID = &id
			}
			batch.Queue(q, string(ev.Type), requestID, ev.Actor, ev.Sender, ev.Receiver, ev.At)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert %d friend events: %w", len(events), err)
	}
	return nil
}

// CountFriendEvents returns how many events involve user.
func (l *EventLog) CountFriendEvents(ctx context.Context, user uuid.UUID) (int, error) {
	var n int
	err := l.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM friend_events WHERE sender_id=$1 OR receiver_id=$1`, user,
	).Scan(&n)
	return n, err
}
