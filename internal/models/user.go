package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal account record this service knows about. Profile fields
// live with the profile service.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
