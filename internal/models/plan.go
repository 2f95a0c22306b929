package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
)

// Plan represents a one-off or recurring training plan owned by one user
type Plan struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	Title          string          `json:"title" db:"title"`
	Details        json.RawMessage `json:"details" db:"details"`
	StartDate      dates.Date      `json:"start_date" db:"start_date"`
	EndDate        *dates.Date     `json:"end_date" db:"end_date"`
	RecurrenceRule *string         `json:"recurrence_rule" db:"recurrence_rule"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	Overrides      []PlanOverride  `json:"overrides"`
}

// HasRule returns true if the plan carries a non-empty recurrence rule
func (p *Plan) HasRule() bool {
	return p.RecurrenceRule != nil && *p.RecurrenceRule != ""
}

// OwnedBy returns true if the given user owns the plan
func (p *Plan) OwnedBy(userID uuid.UUID) bool {
	return p.UserID == userID
}

// PlanOccurrence is one plan active on one calendar date
type PlanOccurrence struct {
	PlanID uuid.UUID  `json:"plan_id"`
	Title  string     `json:"title"`
	Date   dates.Date `json:"date"`
	Locked bool       `json:"locked"`
	Plan   *Plan      `json:"-"`
}

// CalendarDay groups the occurrences that fall on the same date
type CalendarDay struct {
	Date        dates.Date       `json:"date"`
	Occurrences []PlanOccurrence `json:"occurrences"`
}
