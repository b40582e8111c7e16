// internal/handlers/api_server.go
package handlers

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jason-s-yu/huddle/internal/auth"
	"github.com/jason-s-yu/huddle/internal/friends"
	"github.com/jason-s-yu/huddle/internal/middleware"
	"github.com/jason-s-yu/huddle/internal/notify"
	"github.com/sirupsen/logrus"
)

// APIServer routes HTTP requests to the friendship service. It owns no state
// of its own; identity comes from the Issuer and every operation receives the
// caller as an explicit actor.
type APIServer struct {
	Friends *friends.Service
	Issuer  *auth.Issuer
	Hub     *notify.Hub

	logger   *logrus.Logger
	validate *validator.Validate
}

// NewAPIServer wires the handlers. hub may be nil, which disables /friends/ws.
func NewAPIServer(svc *friends.Service, issuer *auth.Issuer, hub *notify.Hub, logger *logrus.Logger) *APIServer {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &APIServer{
		Friends:  svc,
		Issuer:   issuer,
		Hub:      hub,
		logger:   logger,
		validate: v,
	}
}

// Routes returns the mux with logging and panic recovery applied.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("POST /user/create", s.CreateUserHandler)

	// friend endpoints
	mux.HandleFunc("GET /friends/list", s.ListFriendsHandler)
	mux.HandleFunc("POST /friends/remove", s.RemoveFriendHandler)
	mux.HandleFunc("POST /friends/requests", s.SendRequestHandler)
	mux.HandleFunc("GET /friends/requests", s.ListRequestsHandler)
	mux.HandleFunc("GET /friends/requests/{id}", s.GetRequestHandler)
	mux.HandleFunc("POST /friends/requests/{id}/accept", s.transitionHandler(s.Friends.Accept))
	mux.HandleFunc("POST /friends/requests/{id}/decline", s.transitionHandler(s.Friends.Decline))
	mux.HandleFunc("POST /friends/requests/{id}/cancel", s.transitionHandler(s.Friends.Cancel))

	if s.Hub != nil {
		mux.HandleFunc("GET /friends/ws", s.FriendEventsWSHandler)
	}

	var h http.Handler = mux
	h = middleware.LogMiddleware(s.logger)(h)
	h = middleware.Recover(s.logger)(h)
	return h
}
