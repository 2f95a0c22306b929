package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
)

// OverrideReason is the justification given for editing a locked plan
type OverrideReason string

const (
	OverrideReasonPeriod  OverrideReason = "period"
	OverrideReasonWeather OverrideReason = "weather"
	OverrideReasonOther   OverrideReason = "other"
)

// OverrideReasons lists every accepted reason, in display order
var OverrideReasons = []OverrideReason{
	OverrideReasonPeriod,
	OverrideReasonWeather,
	OverrideReasonOther,
}

// IsValid returns true if r is one of the accepted reasons
func (r OverrideReason) IsValid() bool {
	for _, known := range OverrideReasons {
		if r == known {
			return true
		}
	}
	return false
}

// PlanOverride is an append-only record that authorizes one locked mutation
type PlanOverride struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	PlanID    uuid.UUID      `json:"plan_id" db:"plan_id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Reason    OverrideReason `json:"reason" db:"reason"`
	ForDate   dates.Date     `json:"for_date" db:"for_date"`
	Note      *string        `json:"note" db:"note"`
	CreatedAt *time.Time     `json:"created_at" db:"created_at"`
}
