package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
)

// User represents an application user as seen by the scoring core
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName *string   `json:"display_name" db:"display_name"`
	Timezone    string    `json:"timezone" db:"timezone"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Location resolves the user's configured timezone, falling back to the
// default zone when it is unset or unknown
func (u *User) Location() *time.Location {
	return dates.LoadLocation(u.Timezone)
}

// Name returns the best display name for the user
func (u *User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}
