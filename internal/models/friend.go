package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// FriendRequestStatus is the lifecycle state of a FriendRequest.
type FriendRequestStatus string

const (
	FriendRequestPending   FriendRequestStatus = "pending"
	FriendRequestAccepted  FriendRequestStatus = "accepted"
	FriendRequestDeclined  FriendRequestStatus = "declined"
	FriendRequestCancelled FriendRequestStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestDeclined, FriendRequestCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s FriendRequestStatus) Terminal() bool {
	return s != FriendRequestPending
}

// FriendRequest is one attempt by Sender to befriend Receiver.
type FriendRequest struct {
	ID        uuid.UUID           `json:"id"`
	Sender    uuid.UUID           `json:"sender_id"`
	Receiver  uuid.UUID           `json:"receiver_id"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Involves reports whether user is the sender or the receiver.
func (r *FriendRequest) Involves(user uuid.UUID) bool {
	return r.Sender == user || r.Receiver == user
}

// Counterpart returns the other participant from user's point of view.
func (r *FriendRequest) Counterpart(user uuid.UUID) uuid.UUID {
	if r.Sender == user {
		return r.Receiver
	}
	return r.Sender
}

// FriendList is the set of confirmed friends of Owner.
type FriendList struct {
	Owner   uuid.UUID
	Friends map[uuid.UUID]struct{}
}

// NewFriendList returns an empty list for owner.
func NewFriendList(owner uuid.UUID) *FriendList {
	return &FriendList{Owner: owner, Friends: make(map[uuid.UUID]struct{})}
}

// Has reports whether other is in the list.
func (l *FriendList) Has(other uuid.UUID) bool {
	_, ok := l.Friends[other]
	return ok
}

// IDs returns the friend ids in a stable order.
func (l *FriendList) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l.Friends))
	for id := range l.Friends {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Friend is a friend list entry joined with the request that created the friendship.
// RequestID is uuid.Nil when no accepted request is on record.
type Friend struct {
	UserID    uuid.UUID  `json:"user_id"`
	RequestID uuid.UUID  `json:"request_id"`
	Since     *time.Time `json:"since,omitempty"`
}
