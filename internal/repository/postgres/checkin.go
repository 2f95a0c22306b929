package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type checkinRepository struct {
	db repository.DBTX
}

// NewCheckinRepository creates a new check-in repository
func NewCheckinRepository(db repository.DBTX) repository.CheckinRepository {
	return &checkinRepository{db: db}
}

func (r *checkinRepository) Exists(ctx context.Context, userID, roomID uuid.UUID, forDate dates.Date) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM checkins
			WHERE user_id = $1 AND room_id = $2 AND for_date = $3
		)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, roomID, forDate).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check checkin: %w", err)
	}
	return ok, nil
}
