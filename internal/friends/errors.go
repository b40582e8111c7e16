// internal/friends/errors.go
package friends

import (
	"errors"
	"fmt"
)

// Error classes returned by the friendship core. Callers classify with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Specific outcomes. Each wraps one of the classes above.
var (
	ErrSelfReference     = fmt.Errorf("%w: user cannot befriend themselves", ErrInvalidArgument)
	ErrDuplicateRequest  = fmt.Errorf("%w: duplicate request", ErrConflict)
	ErrAlreadyFriends    = fmt.Errorf("%w: already friends", ErrConflict)
	ErrReciprocalPending = fmt.Errorf("%w: reciprocal request pending", ErrConflict)
	ErrRequestNotFound   = fmt.Errorf("%w: friend request", ErrNotFound)
	ErrFriendListMissing = fmt.Errorf("%w: friend list", ErrNotFound)
	ErrNotFriends        = fmt.Errorf("%w: users are not friends", ErrNotFound)
	ErrUserExists        = fmt.Errorf("%w: user already exists", ErrConflict)
)

// Code returns a short machine readable name for the class of err, or "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "internal"
}

// IsExpected reports whether err is a steady-state outcome of the taxonomy rather
// than an infrastructure or programming fault.
func IsExpected(err error) bool {
	return Code(err) != "internal"
}
