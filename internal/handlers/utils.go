package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jason-s-yu/huddle/internal/auth"
	"github.com/jason-s-yu/huddle/internal/friends"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// statusFor maps the friendship error classes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, friends.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, friends.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, friends.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, friends.ErrConflict), errors.Is(err, friends.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeServiceError reports err to the client. Internal failures are logged and
// hidden behind a generic message.
func (s *APIServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, status, "internal", "internal error")
		return
	}
	writeError(w, status, friends.Code(err), err.Error())
}

// actor resolves the calling user or writes the auth failure.
func (s *APIServer) actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := s.Issuer.Actor(r)
	if errors.Is(err, auth.ErrMissingToken) {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing auth_token")
		return uuid.Nil, false
	}
	if err != nil {
		writeError(w, http.StatusForbidden, "unauthenticated", "invalid token")
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into dst and runs the struct validators on it.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid payload")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		msg := "invalid payload"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = "invalid " + verrs[0].Field() + ": failed " + verrs[0].Tag()
		}
		writeError(w, http.StatusBadRequest, "invalid_argument", msg)
		return false
	}
	return true
}

// pathID parses the {id} path segment.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseID(w, r.PathValue("id"), "request id")
}

// parseID parses a user or request id, answering 400 when it is malformed.
func parseID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid "+field)
		return uuid.Nil, false
	}
	return id, true
}
