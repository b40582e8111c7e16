// internal/friends/requests.go
package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
	"github.com/sirupsen/logrus"
)

// Publisher receives friend events after the change that produced them has committed.
type Publisher interface {
	Publish(ctx context.Context, ev models.FriendEvent) error
}

// Service runs the friend request lifecycle and commits accepted requests into the Graph.
//
//	pending --accept (receiver)--> accepted   (adds both edges)
//	pending --decline (receiver)-> declined
//	pending --cancel (sender)----> cancelled
//
// Every other transition fails with ErrInvalidState.
type Service struct {
	Graph *Graph

	store      Store
	publishers []Publisher
	log        *logrus.Entry

	// now is swapped in tests.
	now func() time.Time
}

// NewService builds a Service. Events are handed to each publisher in order.
func NewService(store Store, logger *logrus.Logger, publishers ...Publisher) *Service {
	return &Service{
		Graph:      NewGraph(store),
		store:      store,
		publishers: publishers,
		log:        logger.WithField("component", "friends"),
		now:        time.Now,
	}
}

// Register creates a user account together with its empty friend list.
func (s *Service) Register(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	u := &models.User{ID: id, Username: username, CreatedAt: s.now().UTC()}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.WithField("user", u.ID).Debug("user registered")
	return u, nil
}

// Send records a pending request from sender to receiver. sender must be the
// identity of the caller.
func (s *Service) Send(ctx context.Context, sender, receiver uuid.UUID) (*models.FriendRequest, error) {
	if sender == uuid.Nil || receiver == uuid.Nil {
		return nil, fmt.Errorf("%w: malformed user id", ErrInvalidArgument)
	}
	if sender == receiver {
		return nil, ErrSelfReference
	}

	var created *models.FriendRequest
	err := s.store.RunInTx(ctx, sender, receiver, func(tx Tx) error {
		senderList, err := tx.GetFriendList(ctx, sender)
		if err != nil {
			return err
		}
		if _, err := tx.GetFriendList(ctx, receiver); err != nil {
			return err
		}

		if err := noActiveRequest(ctx, tx, sender, receiver, ErrDuplicateRequest); err != nil {
			return err
		}
		if senderList.Has(receiver) {
			return ErrAlreadyFriends
		}
		if err := noActiveRequest(ctx, tx, receiver, sender, ErrReciprocalPending); err != nil {
			return err
		}

		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate request id: %w", err)
		}
		now := s.now().UTC()
		req := &models.FriendRequest{
			ID:        id,
			Sender:    sender,
			Receiver:  receiver,
			Status:    models.FriendRequestPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.PutRequest(ctx, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		s.logFailure("send", err, logrus.Fields{"sender": sender, "receiver": receiver})
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request":  created.ID,
		"sender":   sender,
		"receiver": receiver,
	}).Info("friend request sent")
	s.publish(ctx, models.EventRequestSent, created, sender)
	return created, nil
}

// Accept moves a pending request to accepted and makes both users friends.
// Only the receiver may accept. If the friend lists cannot be updated the
// request stays pending.
func (s *Service) Accept(ctx context.Context, id, actor uuid.UUID) (*models.FriendRequest, error) {
	return s.transition(ctx, id, actor, models.FriendRequestAccepted)
}

// Decline moves a pending request to declined. Only the receiver may decline.
func (s *Service) Decline(ctx context.Context, id, actor uuid.UUID) (*models.FriendRequest, error) {
	return s.transition(ctx, id, actor, models.FriendRequestDeclined)
}

// Cancel moves a pending request to cancelled. Only the sender may cancel.
func (s *Service) Cancel(ctx context.Context, id, actor uuid.UUID) (*models.FriendRequest, error) {
	return s.transition(ctx, id, actor, models.FriendRequestCancelled)
}

func (s *Service) transition(ctx context.Context, id, actor uuid.UUID, to models.FriendRequestStatus) (*models.FriendRequest, error) {
	// sender and receiver never change, so the pair read outside the
	// transaction is the pair to lock
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *models.FriendRequest
	err = s.store.RunInTx(ctx, req.Sender, req.Receiver, func(tx Tx) error {
		cur, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(cur, actor, to); err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return fmt.Errorf("%w: request is already %s", ErrInvalidState, cur.Status)
		}
		if to == models.FriendRequestAccepted {
			if err := link(ctx, tx, cur.Sender, cur.Receiver); err != nil {
				return fmt.Errorf("failed to commit friendship: %w", err)
			}
		}
		cur.Status = to
		cur.UpdatedAt = s.now().UTC()
		if err := tx.PutRequest(ctx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		s.logFailure(string(to), err, logrus.Fields{"request": id, "actor": actor})
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"request": id,
		"actor":   actor,
		"status":  to,
	}).Info("friend request resolved")
	s.publish(ctx, eventFor(to), updated, actor)
	return updated, nil
}

// Get returns a request visible to actor. Requests actor takes no part in are
// reported as missing.
func (s *Service) Get(ctx context.Context, id, actor uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Involves(actor) {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// ListActive returns the pending requests user sent or received.
func (s *Service) ListActive(ctx context.Context, user uuid.UUID) ([]*models.FriendRequest, error) {
	return s.store.ListActiveRequests(ctx, user)
}

// ListFriends returns owner's friends, each joined with the accepted request
// that made them friends when one is on record.
func (s *Service) ListFriends(ctx context.Context, owner uuid.UUID) ([]models.Friend, error) {
	ids, err := s.Graph.Friends(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]models.Friend, 0, len(ids))
	for _, id := range ids {
		f := models.Friend{UserID: id}
		req, err := s.store.LatestAcceptedRequest(ctx, owner, id)
		switch {
		case err == nil:
			since := req.UpdatedAt
			f.RequestID = req.ID
			f.Since = &since
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Unfriend removes the friendship between requester and other. The accepted
// request that created it is left untouched.
func (s *Service) Unfriend(ctx context.Context, requester, other uuid.UUID) error {
	if requester == other {
		return ErrSelfReference
	}
	err := s.store.RunInTx(ctx, requester, other, func(tx Tx) error {
		ok, err := areFriends(ctx, tx, requester, other)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFriends
		}
		return unlink(ctx, tx, requester, other)
	})
	if err != nil {
		s.logFailure("unfriend", err, logrus.Fields{"requester": requester, "other": other})
		return err
	}

	s.log.WithFields(logrus.Fields{"requester": requester, "other": other}).Info("unfriended")
	s.emit(ctx, models.FriendEvent{
		Type:     models.EventUnfriended,
		Actor:    requester,
		Sender:   requester,
		Receiver: other,
		At:       s.now().UTC(),
	})
	return nil
}

func noActiveRequest(ctx context.Context, tx Tx, sender, receiver uuid.UUID, conflict error) error {
	_, err := tx.FindActiveRequest(ctx, sender, receiver)
	if err == nil {
		return conflict
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func authorize(req *models.FriendRequest, actor uuid.UUID, to models.FriendRequestStatus) error {
	if !req.Involves(actor) {
		return fmt.Errorf("%w: not a participant of this request", ErrUnauthorized)
	}
	switch to {
	case models.FriendRequestAccepted, models.FriendRequestDeclined:
		if actor != req.Receiver {
			return fmt.Errorf("%w: only the receiver can %s", ErrUnauthorized, verb(to))
		}
	case models.FriendRequestCancelled:
		if actor != req.Sender {
			return fmt.Errorf("%w: only the sender can cancel", ErrUnauthorized)
		}
	default:
		return fmt.Errorf("%w: unknown target status %q", ErrInvalidArgument, to)
	}
	return nil
}

func verb(to models.FriendRequestStatus) string {
	switch to {
	case models.FriendRequestAccepted:
		return "accept"
	case models.FriendRequestDeclined:
		return "decline"
	}
	return "cancel"
}

func eventFor(to models.FriendRequestStatus) models.FriendEventType {
	switch to {
	case models.FriendRequestAccepted:
		return models.EventRequestAccepted
	case models.FriendRequestDeclined:
		return models.EventRequestDeclined
	}
	return models.EventRequestCancelled
}

func (s *Service) publish(ctx context.Context, typ models.FriendEventType, req *models.FriendRequest, actor uuid.UUID) {
	s.emit(ctx, models.FriendEvent{
		Type:      typ,
		RequestID: req.ID,
		Actor:     actor,
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		At:        req.UpdatedAt,
	})
}

// emit never fails the operation; the change is already committed.
func (s *Service) emit(ctx context.Context, ev models.FriendEvent) {
	for _, p := range s.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			s.log.WithError(err).WithField("event", ev.Type).Warn("failed to publish friend event")
		}
	}
}

// logFailure keeps expected outcomes at debug level so conflicts do not read like faults.
func (s *Service) logFailure(op string, err error, fields logrus.Fields) {
	entry := s.log.WithFields(fields).WithField("op", op).WithError(err)
	if IsExpected(err) {
		entry.Debug("friend operation rejected")
		return
	}
	entry.Error("friend operation failed")
}
