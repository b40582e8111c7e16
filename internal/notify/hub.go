// internal/notify/hub.go
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/sirupsen/logrus"
)

const (
	hubShards = 32
	// subscriberBuffer events may queue for a slow subscriber before new ones are dropped.
	subscriberBuffer = 16
)

type subscriber struct {
	ch chan models.FriendEvent
}

type shard struct {
	sync.RWMutex
	subs map[uuid.UUID]map[*subscriber]struct{}
}

// Hub fans friend events out to the live connections of the users involved.
type Hub struct {
	shards [hubShards]*shard
	logger *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	h := &Hub{logger: logger}
	for i := range h.shards {
		h.shards[i] = &shard{subs: make(map[uuid.UUID]map[*subscriber]struct{})}
	}
	return h
}

func (h *Hub) shard(user uuid.UUID) *shard {
	return h.shards[fnv1a.HashBytes32(user[:])%hubShards]
}

// Subscribe registers a listener for events concerning user. The returned
// cancel func must be called once the listener is done; it closes the channel.
func (h *Hub) Subscribe(user uuid.UUID) (<-chan models.FriendEvent, func()) {
	sub := &subscriber{ch: make(chan models.FriendEvent, subscriberBuffer)}
	sh := h.shard(user)

	sh.Lock()
	if sh.subs[user] == nil {
		sh.subs[user] = make(map[*subscriber]struct{})
	}
	sh.subs[user][sub] = struct{}{}
	sh.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sh.Lock()
			delete(sh.subs[user], sub)
			if len(sh.subs[user]) == 0 {
				delete(sh.subs, user)
			}
			sh.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber of its sender and receiver. It never
// blocks; a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, ev models.FriendEvent) error {
	for _, user := range ev.Recipients() {
		sh := h.shard(user)
		sh.RLock()
		for sub := range sh.subs[user] {
			select {
			case sub.ch <- ev:
			default:
				h.logger.WithFields(logrus.Fields{
					"user":  user,
					"event": ev.Type,
				}).Warn("dropping friend event for slow subscriber")
			}
		}
		sh.RUnlock()
	}
	return nil
}

// Subscribers returns the number of live subscriptions for user.
func (h *Hub) Subscribers(user uuid.UUID) int {
	sh := h.shard(user)
	sh.RLock()
	defer sh.RUnlock()
	return len(sh.subs[user])
}
