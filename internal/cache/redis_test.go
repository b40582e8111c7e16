package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*EventQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewEventQueue(rdb, "test_friend_events"), mr
}

func TestEventQueuePublishAndPop(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	ev := models.FriendEvent{
		Type:      models.EventRequestAccepted,
		RequestID: uuid.New(),
		Actor:     uuid.New(),
		Sender:    uuid.New(),
		Receiver:  uuid.New(),
		At:        time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC),
	}
	require.NoError(t, q.Publish(ctx, ev))

	items, err := mr.List("test_friend_events")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], `"type":"request_accepted"`)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ev.RequestID, got.RequestID)
	assert.True(t, ev.At.Equal(got.At))
}

func TestEventQueuePopTimesOut(t *testing.T) {
	q, _ := setupQueue(t)
	got, err := q.Pop(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventQueuePublishFailsWhenRedisIsDown(t *testing.T) {
	q, mr := setupQueue(t)
	mr.Close()
	err := q.Publish(context.Background(), models.FriendEvent{Type: models.EventUnfriended})
	assert.Error(t, err)
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect(context.Background(), "127.0.0.1:1", 0)
	assert.Error(t, err)
}
