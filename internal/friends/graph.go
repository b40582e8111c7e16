// internal/friends/graph.go
package friends

import (
	"context"

	"github.com/google/uuid"
)

// Graph maintains the symmetric friend relation on top of a Store.
//
// AddFriend and RemoveFriend touch one direction only and exist for repair and
// administrative use. Symmetric changes go through Service.Accept and Unfriend.
type Graph struct {
	store Store
}

// NewGraph returns a Graph backed by store.
func NewGraph(store Store) *Graph {
	return &Graph{store: store}
}

// AddFriend inserts other into owner's list if absent.
func (g *Graph) AddFriend(ctx context.Context, owner, other uuid.UUID) error {
	return g.store.RunInTx(ctx, owner, other, func(tx Tx) error {
		return addFriend(ctx, tx, owner, other)
	})
}

// RemoveFriend removes other from owner's list if present.
func (g *Graph) RemoveFriend(ctx context.Context, owner, other uuid.UUID) error {
	return g.store.RunInTx(ctx, owner, other, func(tx Tx) error {
		return removeFriend(ctx, tx, owner, other)
	})
}

// Unfriend removes the edge in both directions in a single transaction.
func (g *Graph) Unfriend(ctx context.Context, a, b uuid.UUID) error {
	return g.store.RunInTx(ctx, a, b, func(tx Tx) error {
		return unlink(ctx, tx, a, b)
	})
}

// AreFriends reports whether b is in a's friend list. A user is never their own friend.
func (g *Graph) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return areFriends(ctx, g.store, a, b)
}

// Friends returns owner's friend ids in a stable order.
func (g *Graph) Friends(ctx context.Context, owner uuid.UUID) ([]uuid.UUID, error) {
	fl, err := g.store.GetFriendList(ctx, owner)
	if err != nil {
		return nil, err
	}
	return fl.IDs(), nil
}

func areFriends(ctx context.Context, r Reader, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	fl, err := r.GetFriendList(ctx, a)
	if err != nil {
		return false, err
	}
	return fl.Has(b), nil
}

func addFriend(ctx context.Context, tx Tx, owner, other uuid.UUID) error {
	if owner == other {
		return ErrSelfReference
	}
	// the reciprocal list has to exist even for a one-sided insert
	if _, err := tx.GetFriendList(ctx, other); err != nil {
		return err
	}
	return tx.AddFriend(ctx, owner, other)
}

func removeFriend(ctx context.Context, tx Tx, owner, other uuid.UUID) error {
	if owner == other {
		return ErrSelfReference
	}
	return tx.RemoveFriend(ctx, owner, other)
}

// link and unlink must run inside a transaction holding the {a, b} pair.
func link(ctx context.Context, tx Tx, a, b uuid.UUID) error {
	if err := addFriend(ctx, tx, a, b); err != nil {
		return err
	}
	return addFriend(ctx, tx, b, a)
}

func unlink(ctx context.Context, tx Tx, a, b uuid.UUID) error {
	if err := removeFriend(ctx, tx, a, b); err != nil {
		return err
	}
	return removeFriend(ctx, tx, b, a)
}
