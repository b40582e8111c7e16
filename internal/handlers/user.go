package handlers

import (
	"net/http"

	"github.com/jason-s-yu/huddle/internal/models"
)

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type createUserResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// CreateUserHandler registers an account (and with it an empty friend list) and
// returns a token for it. The token is also sent as the auth cookie.
func (s *APIServer) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.Friends.Register(r.Context(), req.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	token, err := s.Issuer.CreateJWT(u.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.Issuer.SetCookie(w, token)
	writeJSON(w, http.StatusCreated, createUserResponse{User: u, Token: token})
}
