package friends

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []models.FriendEvent
}

func (r *recorder) Publish(ctx context.Context, ev models.FriendEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []models.FriendEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FriendEventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, models.FriendEvent) error {
	return errors.New("broker down")
}

func newTestService(t *testing.T, pubs ...Publisher) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, quietLogger(), pubs...), store
}

func registerUsers(t *testing.T, s *Service, names ...string) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(names))
	for _, n := range names {
		u, err := s.Register(context.Background(), n)
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	return ids
}

func makeFriends(t *testing.T, s *Service, a, b uuid.UUID) *models.FriendRequest {
	t.Helper()
	ctx := context.Background()
	req, err := s.Send(ctx, a, b)
	require.NoError(t, err)
	req, err = s.Accept(ctx, req.ID, b)
	require.NoError(t, err)
	return req
}

// requireSymmetric checks both directions of the friend relation agree.
func requireSymmetric(t *testing.T, g *Graph, a, b uuid.UUID) bool {
	t.Helper()
	ctx := context.Background()
	ab, err := g.AreFriends(ctx, a, b)
	require.NoError(t, err)
	ba, err := g.AreFriends(ctx, b, a)
	require.NoError(t, err)
	require.Equal(t, ab, ba, "friendship must be symmetric")
	return ab
}

// failingStore makes AddFriend fail for one owner inside transactions.
type failingStore struct {
	Store
	failOn uuid.UUID
}

func (f *failingStore) RunInTx(ctx context.Context, a, b uuid.UUID, fn func(tx Tx) error) error {
	return f.Store.RunInTx(ctx, a, b, func(tx Tx) error {
		return fn(&failingTx{Tx: tx, failOn: f.failOn})
	})
}

type failingTx struct {
	Tx
	failOn uuid.UUID
}

var errDiskFull = errors.New("disk full")

func (f *failingTx) AddFriend(ctx context.Context, owner, other uuid.UUID) error {
	if owner == f.failOn {
		return errDiskFull
	}
	return f.Tx.AddFriend(ctx, owner, other)
}

// pairSnapshot reads both directions of a pair under one read lock and without
// taking the pair stripe.
func (s *MemoryStore) pairSnapshot(a, b uuid.UUID) (aHasB, bHasA bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, aHasB = s.lists[a][b]
	_, bHasA = s.lists[b][a]
	return aHasB, bHasA
}
