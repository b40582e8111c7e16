package friends

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCreatesPendingRequest(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestService(t, rec)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ids := registerUsers(t, s, "alice", "bob")
	a, b := ids[0], ids[1]

	req, err := s.Send(context.Background(), a, b)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, req.ID)
	assert.Equal(t, a, req.Sender)
	assert.Equal(t, b, req.Receiver)
	assert.Equal(t, models.FriendRequestPending, req.Status)
	assert.Equal(t, fixed, req.CreatedAt)
	assert.Equal(t, []models.FriendEventType{models.EventRequestSent}, rec.types())
}

func TestSendValidation(t *testing.T) {
	s, _ := newTestService(t)
	ids := registerUsers(t, s, "alice", "bob", "carol")
	a, b, c := ids[0], ids[1], ids[2]
	ctx := context.Background()

	_, err := s.Send(ctx, a, a)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.Send(ctx, uuid.Nil, b)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.Send(ctx, a, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Send(ctx, a, b)
	require.NoError(t, err)

	_, err = s.Send(ctx, a, b)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Send(ctx, b, a)
	assert.ErrorIs(t, err, ErrReciprocalPending)
	assert.ErrorIs(t, err, ErrConflict)

	makeFriends(t, s, a, c)
	_, err = s.Send(ctx, c, a)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
	_, err = s.Send(ctx, a, c)
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestAcceptMakesBothUsersFriends(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestService(t, rec)
	ids := registerUsers(t, s, "alice", "bob")
	a, b := ids[0], ids[1]
	ctx := context.Background()

	req, err := s.Send(ctx, a, b)
	require.NoError(t, err)
	accepted, err := s.Accept(ctx, req.ID, b)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, accepted.Status)
	assert.True(t, requireSymmetric(t, s.Graph, a, b))

	_, err = s.Decline(ctx, req.ID, b)
	assert.ErrorIs(t, err, ErrInvalidState)

	stored, err := s.Get(ctx, req.ID, a)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, stored.Status)
	assert.Equal(t, []models.FriendEventType{models.EventRequestSent, models.EventRequestAccepted}, rec.types())
}

func TestTransitionRoles(t *testing.T) {
	s, _ := newTestService(t)
	ids := registerUsers(t, s, "alice", "bob", "mallory")
	a, b, m := ids[0], ids[1], ids[2]
	ctx := context.Background()

	req, err := s.Send(ctx, a, b)
	require.NoError(t, err)

	_, err = s.Accept(ctx, req.ID, a)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Decline(ctx, req.ID, a)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Cancel(ctx, req.ID, b)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.Accept(ctx, req.ID, m)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, err := s.Get(ctx, req.ID, b)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, stored.Status)

	_, err = s.Accept(ctx, uuid.New(), b)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	cases := []struct {
		name    string
		resolve func(s *Service, id, sender, receiver uuid.UUID) error
		want    models.FriendRequestStatus
	}{
		{"declined", func(s *Service, id, _, receiver uuid.UUID) error {
			_, err := s.Decline(context.Background(), id, receiver)
			return err
		}, models.FriendRequestDeclined},
		{"cancelled", func(s *Service, id, sender, _ uuid.UUID) error {
			_, err := s.Cancel(context.Background(), id, sender)
			return err
		}, models.FriendRequestCancelled},
		{"accepted", func(s *Service, id, _, receiver uuid.UUID) error {
			_, err := s.Accept(context.Background(), id, receiver)
			return err
		}, models.FriendRequestAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestService(t)
			ids := registerUsers(t, s, "alice", "bob")
			a, b := ids[0], ids[1]
			ctx := context.Background()

			req, err := s.Send(ctx, a, b)
			require.NoError(t, err)
			require.NoError(t, tc.resolve(s, req.ID, a, b))

			_, err = s.Accept(ctx, req.ID, b)
			assert.ErrorIs(t, err, ErrInvalidState)
			_, err = s.Decline(ctx, req.ID, b)
			assert.ErrorIs(t, err, ErrInvalidState)
			_, err = s.Cancel(ctx, req.ID, a)
			assert.ErrorIs(t, err, ErrInvalidState)

			stored, err := s.Get(ctx, req.ID, a)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.Status)

			active, err := s.ListActive(ctx, a)
			require.NoError(t, err)
			assert.Empty(t, active)
		})
	}
}

func TestResendAfterDeclineOrCancel(t *testing.T) {
	s, _ := newTestService(t)
	ids := registerUsers(t, s, "alice", "bob")
	a, b := ids[0], ids[1]
	ctx := context.Background()

	first, err := s.Send(ctx, a, b)
	require.NoError(t, err)
	_, err = s.Decline(ctx, first.ID, b)
	require.NoError(t, err)

	second, err := s.Send(ctx, a, b)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	_, err = s.Cancel(ctx, second.ID, a)
	require.NoError(t, err)

	// the receiver may now ask the other way round
	third, err := s.Send(ctx, b, a)
	require.NoError(t, err)
	_, err = s.Accept(ctx, third.ID, a)
	require.NoError(t, err)
	assert.True(t, requireSymmetric(t, s.Graph, a, b))
}

func TestExactlyOneConcurrentTransitionWins(t *testing.T) {
	s, _ := newTestService(t)
	ids := registerUsers(t, s, "alice", "bob")
	a, b := ids[0], ids[1]
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		req, err := s.Send(ctx, a, b)
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []string
			errs []error
		)
		attempt := func(name string, fn func() error) {
			defer wg.Done()
			err := fn()
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins = append(wins, name)
				return
			}
			errs = append(errs, err)
		}
		wg.Add(6)
		for i := 0; i < 2; i++ {
			go attempt("accept", func() error { _, err := s.Accept(ctx, req.ID, b); return err })
			go attempt("decline", func() error { _, err := s.Decline(ctx, req.ID, b); return err })
			go attempt("cancel", func() error { _, err := s.Cancel(ctx, req.ID, a); return err })
		}
		wg.Wait()

		require.Len(t, wins, 1, "round %d", round)
		for _, err := range errs {
			assert.ErrorIs(t, err, ErrInvalidState)
		}

		stored, err := s.Get(ctx, req.ID, a)
		require.NoError(t, err)
		friends := requireSymmetric(t, s.Graph, a, b)
		assert.Equal(t, stored.Status == models.FriendRequestAccepted, friends)
		if friends {
			require.NoError(t, s.Unfriend(ctx, a, b))
		}
	}
}

func TestConcurrentSendsCreateOneRequest(t *testing.T) {
	s, _ := newTestService(t)
	ids := registerUsers(t, s, "alice", "bob")
	a, b := ids[0], ids[1]
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		go func() {
			defer wg.Done()
			_, err := s.Send(ctx, from, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 15, conflicts)
	active, err := s.ListActive(ctx, a)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAcceptKeepsRequestPendingWhenGraphCommitFails(t *testing.T) {
	store := NewMemoryStore()
	healthy := NewService(store, quietLogger())
	ids := registerUsers(t, healthy, "alice", "bob")
	a, b := ids[0], ids[1]
	ctx := context.Background()

	req, err := healthy.Send(ctx, a, b)
	require.NoError(t, err)

	// the second edge write fails after the first one was staged
	broken := NewService(&failingStore{Store: store, failOn: b}, quietLogger())
	_, err = broken.Accept(ctx, req.ID, b)
	require.ErrorIs(t, err, errDiskFull)

	stored, err := healthy.Get(ctx, req.ID, b)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, stored.Status)
	assert.False(t, requireSymmetric(t, healthy.Graph, a, b))

	_, err = healthy.Accept(ctx, req.ID, b)
	require.NoError(t, err)
	assert.True(t, requireSymmetric(t, healthy.Graph, a, b))
}

func TestUnfriendRoundTripKeepsAcceptedRequest(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestService(t, rec)
	ids := registerUsers(t, s, "alice", "bob")
	a, b := ids[0], ids[1]
	ctx := context.Background()

	req := makeFriends(t, s, a, b)
	require.NoError(t, s.Unfriend(ctx, a, b))
	assert.False(t, requireSymmetric(t, s.Graph, a, b))

	stored, err := s.Get(ctx, req.ID, b)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, stored.Status)

	assert.ErrorIs(t, s.Unfriend(ctx, a, b), ErrNotFriends)
	assert.ErrorIs(t, s.Unfriend(ctx, b, a), ErrNotFound)
	assert.ErrorIs(t, s.Unfriend(ctx, a, a), ErrInvalidArgument)

	types := rec.types()
	assert.Equal(t, models.EventUnfriended, types[len(types)-1])

	// the pair can become friends again with a fresh request
	again := makeFriends(t, s, b, a)
	assert.NotEqual(t, req.ID, again.ID)
	assert.True(t, requireSymmetric(t, s.Graph, a, b))
}

func TestListActiveAndGetVisibility(t *testing.T) {
	s, _ := newTestService(t)
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	ids := registerUsers(t, s, "alice", "bob", "carol", "dave")
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]
	ctx := context.Background()

	ab, err := s.Send(ctx, a, b)
	require.NoError(t, err)
	ca, err := s.Send(ctx, c, a)
	require.NoError(t, err)
	dc, err := s.Send(ctx, d, c)
	require.NoError(t, err)
	_, err = s.Cancel(ctx, dc.ID, d)
	require.NoError(t, err)

	active, err := s.ListActive(ctx, a)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, ab.ID, active[0].ID)
	assert.Equal(t, ca.ID, active[1].ID)

	active, err = s.ListActive(ctx, d)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = s.Get(ctx, ab.ID, d)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFriendsIncludesAcceptedRequest(t *testing.T) {
	s, _ := newTestService(t)
	ids := registerUsers(t, s, "alice", "bob", "carol")
	a, b, c := ids[0], ids[1], ids[2]
	ctx := context.Background()

	req := makeFriends(t, s, b, a)
	require.NoError(t, s.Graph.AddFriend(ctx, a, c))
	require.NoError(t, s.Graph.AddFriend(ctx, c, a))

	friends, err := s.ListFriends(ctx, a)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	byID := map[uuid.UUID]models.Friend{}
	for _, f := range friends {
		byID[f.UserID] = f
	}
	assert.Equal(t, req.ID, byID[b].RequestID)
	require.NotNil(t, byID[b].Since)
	assert.Equal(t, uuid.Nil, byID[c].RequestID)
	assert.Nil(t, byID[c].Since)
}

func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	s, _ := newTestService(t, brokenPublisher{})
	ids := registerUsers(t, s, "alice", "bob")

	req, err := s.Send(context.Background(), ids[0], ids[1])
	require.NoError(t, err)
	_, err = s.Accept(context.Background(), req.ID, ids[1])
	require.NoError(t, err)
}

func TestRegister(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	fl, err := store.GetFriendList(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, fl.Friends)

	_, err = s.Register(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, store.CreateUser(ctx, u), ErrUserExists)
}

func TestCodeClassifiesErrors(t *testing.T) {
	assert.Equal(t, "conflict", Code(ErrReciprocalPending))
	assert.Equal(t, "not_found", Code(ErrNotFriends))
	assert.Equal(t, "invalid_state", Code(ErrInvalidState))
	assert.Equal(t, "internal", Code(errDiskFull))
	assert.False(t, IsExpected(errDiskFull))
	assert.True(t, IsExpected(ErrSelfReference))
}
