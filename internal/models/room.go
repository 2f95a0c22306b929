package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is a group container users join with an invite code
type Room struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Code           string    `json:"code" db:"code"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Team is a small sub-group of a room that scores together
type Team struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RoomID    uuid.UUID `json:"room_id" db:"room_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeamMember represents the join table between teams and users
type TeamMember struct {
	TeamID      uuid.UUID  `json:"team_id" db:"team_id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Username    string     `json:"username" db:"username"`
	DisplayName *string    `json:"display_name" db:"display_name"`
	JoinedAt    *time.Time `json:"joined_at" db:"joined_at"`
}
