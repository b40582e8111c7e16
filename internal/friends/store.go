// internal/friends/store.go
package friends

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/segmentio/fasthash/fnv1a"
)

// Reader is the read side of the persistence contract.
type Reader interface {
	// GetFriendList returns ErrFriendListMissing if owner has no list.
	GetFriendList(ctx context.Context, owner uuid.UUID) (*models.FriendList, error)
	// GetRequest returns ErrRequestNotFound if no record has that id.
	GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error)
	// ListActiveRequests returns pending requests where user is sender or receiver, oldest first.
	ListActiveRequests(ctx context.Context, user uuid.UUID) ([]*models.FriendRequest, error)
	// LatestAcceptedRequest returns the most recent accepted request between a and b
	// in either direction, or ErrRequestNotFound.
	LatestAcceptedRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error)
}

// Tx is a store transaction scoped to one unordered pair of users. Writes become
// visible to other callers only when the transaction function returns nil.
type Tx interface {
	Reader
	// FindActiveRequest returns the pending sender->receiver request or ErrRequestNotFound.
	FindActiveRequest(ctx context.Context, sender, receiver uuid.UUID) (*models.FriendRequest, error)
	// AddFriend and RemoveFriend change a single directed edge and are idempotent.
	AddFriend(ctx context.Context, owner, other uuid.UUID) error
	RemoveFriend(ctx context.Context, owner, other uuid.UUID) error
	PutRequest(ctx context.Context, req *models.FriendRequest) error
}

// Store is the persistence collaborator of the friendship core.
type Store interface {
	Reader
	// CreateUser stores the account together with its empty friend list.
	CreateUser(ctx context.Context, u *models.User) error
	// RunInTx runs fn in a transaction that excludes every other transaction on
	// the pair {a, b}. fn's error aborts the transaction and is returned as is.
	RunInTx(ctx context.Context, a, b uuid.UUID, fn func(tx Tx) error) error
}

// PairKey hashes the unordered pair {a, b}. PairKey(a, b) == PairKey(b, a).
func PairKey(a, b uuid.UUID) uint64 {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := fnv1a.Init64
	h = fnv1a.AddBytes64(h, a[:])
	h = fnv1a.AddBytes64(h, b[:])
	return h
}
