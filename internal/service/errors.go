package service

import (
	"errors"
	"fmt"

	"github.com/Kerhoff/fitrooms/internal/repository"
)

var (
	// ErrPlanNotFound is returned both when a plan does not exist and when the
	// caller does not own it, so plan IDs cannot be probed.
	ErrPlanNotFound = errors.New("plan not found or not accessible")
	// ErrPlanLocked is returned when a plan date is past its lock instant and
	// no override accompanies the mutation.
	ErrPlanLocked = errors.New("plan is locked, an override is required")
	// ErrConflict is returned when a write hits a uniqueness constraint.
	ErrConflict = repository.ErrConflict
	// ErrNotRoomMember is returned when a non-member asks for room data.
	ErrNotRoomMember = errors.New("only room members can view stats")
	// ErrRoomNotFound is returned when a room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrSnapshotNotFound is returned when no leaderboard exists for a date.
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
)

// ValidationError reports malformed input. It is raised before any
// persistence access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
