// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/redis/go-redis/v9"
)

// Connect returns a Redis client for addr after a successful ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// EventQueue appends friend events to a Redis list for downstream consumers
// (notification fan-out, activity feeds).
type EventQueue struct {
	rdb   *redis.Client
	queue string
}

// NewEventQueue publishes to the list named queue.
func NewEventQueue(rdb *redis.Client, queue string) *EventQueue {
	return &EventQueue{rdb: rdb, queue: queue}
}

// Publish serializes ev to JSON and pushes it onto the queue.
func (q *EventQueue) Publish(ctx context.Context, ev models.FriendEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal FriendEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// Pop removes and returns the oldest queued event, waiting up to timeout.
// It returns (nil, nil) when nothing arrived in time.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*models.FriendEvent, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to BLPop from '%s': %w", q.queue, err)
	}
	// res[0] is the list name and res[1] the payload
	var ev models.FriendEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("invalid friend event: %w", err)
	}
	return &ev, nil
}
