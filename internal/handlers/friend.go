// internal/handlers/friend.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/models"
)

type sendRequestPayload struct {
	ReceiverID string `json:"receiver_id" validate:"required,uuid"`
}

type friendPayload struct {
	FriendID string `json:"friend_id" validate:"required,uuid"`
}

// SendRequestHandler handles a user sending a friend request to another user.
//
// Request payload: { "receiver_id": "some-uuid-string" }
// The sender is always the authenticated caller.
func (s *APIServer) SendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req sendRequestPayload
	if !s.decode(w, r, &req) {
		return
	}
	receiver, ok := parseID(w, req.ReceiverID, "receiver_id")
	if !ok {
		return
	}

	fr, err := s.Friends.Send(r.Context(), userID, receiver)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fr)
}

// ListRequestsHandler returns the caller's pending requests, sent and received.
func (s *APIServer) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actor(w, r)
	if !ok {
		return
	}
	reqs, err := s.Friends.ListActive(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []*models.FriendRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// GetRequestHandler returns one request the caller takes part in.
func (s *APIServer) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fr, err := s.Friends.Get(r.Context(), id, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fr)
}

type transitionFunc func(ctx context.Context, id, actor uuid.UUID) (*models.FriendRequest, error)

// transitionHandler serves accept, decline and cancel on /friends/requests/{id}/...
func (s *APIServer) transitionHandler(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.actor(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		fr, err := fn(r.Context(), id, userID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fr)
	}
}

// ListFriendsHandler returns the caller's friends with the request that made
// each friendship.
func (s *APIServer) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actor(w, r)
	if !ok {
		return
	}
	list, err := s.Friends.ListFriends(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RemoveFriendHandler handles removing (unfriending) a user.
//
// Request payload: { "friend_id": "some-uuid-string" }
func (s *APIServer) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req friendPayload
	if !s.decode(w, r, &req) {
		return
	}
	friendID, ok := parseID(w, req.FriendID, "friend_id")
	if !ok {
		return
	}
	if err := s.Friends.Unfriend(r.Context(), userID, friendID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "friend removed"})
}
