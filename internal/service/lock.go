package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
)

// LockHour is the local hour at which a plan date locks.
const LockHour = 10

// LockInstant returns 10:00 on planDate in loc.
func LockInstant(planDate dates.Date, loc *time.Location) time.Time {
	return planDate.At(LockHour, 0, loc)
}

// IsLocked reports whether now is at or past the lock instant of planDate.
func IsLocked(planDate dates.Date, loc *time.Location, now time.Time) bool {
	return !now.Before(LockInstant(planDate, loc))
}

// userLocation reads the user's timezone on every call; profiles can change
// between requests.
func (s *Service) userLocation(ctx context.Context, userID uuid.UUID) (*time.Location, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user timezone: %w", err)
	}
	if user == nil {
		return dates.LoadLocation(""), nil
	}
	return user.Location(), nil
}

// ensureUnlocked fails with ErrPlanLocked when planDate is locked for userID.
func (s *Service) ensureUnlocked(ctx context.Context, userID uuid.UUID, planDate dates.Date, operation string) error {
	loc, err := s.userLocation(ctx, userID)
	if err != nil {
		return err
	}
	if IsLocked(planDate, loc, s.now()) {
		s.metrics.LockRejections.WithLabelValues(operation).Inc()
		return ErrPlanLocked
	}
	return nil
}
