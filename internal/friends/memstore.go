// internal/friends/memstore.go
package friends

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
)

// lockStripes is the number of pair locks in a MemoryStore. Pairs that hash to the
// same stripe serialize with each other, which is harmless since a transaction
// only ever holds one stripe.
const lockStripes = 256

type edge struct {
	owner, other uuid.UUID
}

type direction struct {
	sender, receiver uuid.UUID
}

// MemoryStore keeps users, friend lists and requests in memory.
type MemoryStore struct {
	stripes [lockStripes]sync.Mutex

	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	lists    map[uuid.UUID]map[uuid.UUID]struct{}
	requests map[uuid.UUID]models.FriendRequest
	byUser   map[uuid.UUID]map[uuid.UUID]struct{} // user -> ids of requests they take part in
	active   map[direction]uuid.UUID
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		lists:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		requests: make(map[uuid.UUID]models.FriendRequest),
		byUser:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
		active:   make(map[direction]uuid.UUID),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("%w: missing user id", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrUserExists
	}
	s.users[u.ID] = *u
	s.lists[u.ID] = make(map[uuid.UUID]struct{})
	return nil
}

func (s *MemoryStore) RunInTx(ctx context.Context, a, b uuid.UUID, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stripe := &s.stripes[PairKey(a, b)%lockStripes]
	stripe.Lock()
	defer stripe.Unlock()

	tx := &memTx{
		s:        s,
		edges:    make(map[edge]bool),
		requests: make(map[uuid.UUID]models.FriendRequest),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *MemoryStore) GetFriendList(ctx context.Context, owner uuid.UUID) (*models.FriendList, error) {
	return s.friendList(owner, nil)
}

func (s *MemoryStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	return s.request(id, nil)
}

func (s *MemoryStore) ListActiveRequests(ctx context.Context, user uuid.UUID) ([]*models.FriendRequest, error) {
	return s.activeRequests(user, nil), nil
}

func (s *MemoryStore) LatestAcceptedRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error) {
	return s.latestAccepted(a, b, nil)
}

// The helpers below read committed state with the staged writes of a transaction
// laid over it. A nil overlay reads committed state only.

func (s *MemoryStore) friendList(owner uuid.UUID, staged map[edge]bool) (*models.FriendList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.lists[owner]
	if !ok {
		return nil, ErrFriendListMissing
	}
	fl := models.NewFriendList(owner)
	for id := range set {
		fl.Friends[id] = struct{}{}
	}
	for e, add := range staged {
		if e.owner != owner {
			continue
		}
		if add {
			fl.Friends[e.other] = struct{}{}
		} else {
			delete(fl.Friends, e.other)
		}
	}
	return fl, nil
}

func (s *MemoryStore) request(id uuid.UUID, staged map[uuid.UUID]models.FriendRequest) (*models.FriendRequest, error) {
	if r, ok := staged[id]; ok {
		return &r, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &r, nil
}

// involving collects every request user takes part in.
func (s *MemoryStore) involving(user uuid.UUID, staged map[uuid.UUID]models.FriendRequest) []models.FriendRequest {
	s.mu.RLock()
	out := make([]models.FriendRequest, 0, len(s.byUser[user]))
	for id := range s.byUser[user] {
		if _, ok := staged[id]; ok {
			continue
		}
		out = append(out, s.requests[id])
	}
	s.mu.RUnlock()
	for _, r := range staged {
		if r.Involves(user) {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStore) activeRequests(user uuid.UUID, staged map[uuid.UUID]models.FriendRequest) []*models.FriendRequest {
	var out []*models.FriendRequest
	for _, r := range s.involving(user, staged) {
		if r.Status == models.FriendRequestPending {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) latestAccepted(a, b uuid.UUID, staged map[uuid.UUID]models.FriendRequest) (*models.FriendRequest, error) {
	var best *models.FriendRequest
	for _, r := range s.involving(a, staged) {
		if r.Status != models.FriendRequestAccepted || r.Counterpart(a) != b {
			continue
		}
		if best == nil || r.UpdatedAt.After(best.UpdatedAt) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return nil, ErrRequestNotFound
	}
	return best, nil
}

type memTx struct {
	s        *MemoryStore
	edges    map[edge]bool
	requests map[uuid.UUID]models.FriendRequest
}

func (tx *memTx) GetFriendList(ctx context.Context, owner uuid.UUID) (*models.FriendList, error) {
	return tx.s.friendList(owner, tx.edges)
}

func (tx *memTx) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	return tx.s.request(id, tx.requests)
}

func (tx *memTx) ListActiveRequests(ctx context.Context, user uuid.UUID) ([]*models.FriendRequest, error) {
	return tx.s.activeRequests(user, tx.requests), nil
}

func (tx *memTx) LatestAcceptedRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error) {
	return tx.s.latestAccepted(a, b, tx.requests)
}

func (tx *memTx) FindActiveRequest(ctx context.Context, sender, receiver uuid.UUID) (*models.FriendRequest, error) {
	for _, r := range tx.requests {
		if r.Sender == sender && r.Receiver == receiver && r.Status == models.FriendRequestPending {
			return &r, nil
		}
	}
	tx.s.mu.RLock()
	id, ok := tx.s.active[direction{sender, receiver}]
	tx.s.mu.RUnlock()
	if !ok {
		return nil, ErrRequestNotFound
	}
	r, err := tx.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.FriendRequestPending {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

func (tx *memTx) AddFriend(ctx context.Context, owner, other uuid.UUID) error {
	if err := tx.requireList(owner); err != nil {
		return err
	}
	tx.edges[edge{owner, other}] = true
	return nil
}

func (tx *memTx) RemoveFriend(ctx context.Context, owner, other uuid.UUID) error {
	if err := tx.requireList(owner); err != nil {
		return err
	}
	tx.edges[edge{owner, other}] = false
	return nil
}

func (tx *memTx) PutRequest(ctx context.Context, req *models.FriendRequest) error {
	if req.ID == uuid.Nil {
		return fmt.Errorf("%w: missing request id", ErrInvalidArgument)
	}
	tx.requests[req.ID] = *req
	return nil
}

func (tx *memTx) requireList(owner uuid.UUID) error {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	if _, ok := tx.s.lists[owner]; !ok {
		return ErrFriendListMissing
	}
	return nil
}

// commit applies all staged writes under one write lock so readers observe
// either none or all of them.
func (tx *memTx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for e := range tx.edges {
		if _, ok := s.lists[e.owner]; !ok {
			return ErrFriendListMissing
		}
	}
	for e, add := range tx.edges {
		set := s.lists[e.owner]
		if add {
			set[e.other] = struct{}{}
		} else {
			delete(set, e.other)
		}
	}
	for id, r := range tx.requests {
		s.requests[id] = r
		for _, u := range []uuid.UUID{r.Sender, r.Receiver} {
			if s.byUser[u] == nil {
				s.byUser[u] = make(map[uuid.UUID]struct{})
			}
			s.byUser[u][id] = struct{}{}
		}
		dir := direction{r.Sender, r.Receiver}
		if r.Status == models.FriendRequestPending {
			s.active[dir] = id
		} else if s.active[dir] == id {
			delete(s.active, dir)
		}
	}
	return nil
}
