package models

import (
	"time"

	"github.com/google/uuid"
)

// FriendEventType names a committed change in the friendship state.
type FriendEventType string

const (
	EventRequestSent      FriendEventType = "request_sent"
	EventRequestAccepted  FriendEventType = "request_accepted"
	EventRequestDeclined  FriendEventType = "request_declined"
	EventRequestCancelled FriendEventType = "request_cancelled"
	EventUnfriended       FriendEventType = "unfriended"
)

// FriendEvent is published after a friendship change commits.
// For EventUnfriended, Sender is the remover and Receiver the removed friend.
type FriendEvent struct {
	Type      FriendEventType `json:"type"`
	RequestID uuid.UUID       `json:"request_id"`
	Actor     uuid.UUID       `json:"actor_id"`
	Sender    uuid.UUID       `json:"sender_id"`
	Receiver  uuid.UUID       `json:"receiver_id"`
	At        time.Time       `json:"at"`
}

// Recipients returns the users the event concerns.
func (e FriendEvent) Recipients() []uuid.UUID {
	return []uuid.UUID{e.Sender, e.Receiver}
}
