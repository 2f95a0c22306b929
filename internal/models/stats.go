package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
)

// DailyStat is the settled outcome of one user's day in one room
type DailyStat struct {
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	RoomID     uuid.UUID  `json:"room_id" db:"room_id"`
	StatDate   dates.Date `json:"stat_date" db:"stat_date"`
	DidCheckin bool       `json:"did_checkin" db:"did_checkin"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Score reasons written by the team scoring job
const (
	ScoreReasonAllCheckedIn = "all_members_checked_in"
	ScoreReasonStreakBonus  = "streak_bonus"
)

// TeamScore is an append-only points award for a team on a date
type TeamScore struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TeamID    uuid.UUID  `json:"team_id" db:"team_id"`
	RoomID    uuid.UUID  `json:"room_id" db:"room_id"`
	ScoreDate dates.Date `json:"score_date" db:"score_date"`
	Points    int        `json:"points" db:"points"`
	Reason    string     `json:"reason" db:"reason"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// TeamStreak is one contiguous run of qualifying days for a team
type TeamStreak struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TeamID    uuid.UUID  `json:"team_id" db:"team_id"`
	StartDate dates.Date `json:"start_date" db:"start_date"`
	EndDate   dates.Date `json:"end_date" db:"end_date"`
	Length    int        `json:"length" db:"length"`
}
