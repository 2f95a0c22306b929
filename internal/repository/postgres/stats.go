package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type dailyStatRepository struct {
	db repository.DBTX
}

// NewDailyStatRepository creates a new daily statistics repository
func NewDailyStatRepository(db repository.DBTX) repository.DailyStatRepository {
	return &dailyStatRepository{db: db}
}

func (r *dailyStatRepository) Upsert(ctx context.Context, stat *models.DailyStat) error {
	query := `
		INSERT INTO daily_stats (user_id, room_id, stat_date, did_checkin, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, room_id, stat_date) DO UPDATE SET did_checkin = EXCLUDED.did_checkin`

	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		stat.UserID, stat.RoomID, stat.StatDate, stat.DidCheckin, stat.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily stat: %w", err)
	}
	return nil
}

func (r *dailyStatRepository) ListByUserRoom(ctx context.Context, userID, roomID uuid.UUID) ([]models.DailyStat, error) {
	query := `
		SELECT user_id, room_id, stat_date, did_checkin, created_at
		FROM daily_stats
		WHERE user_id = $1 AND room_id = $2
		ORDER BY stat_date ASC`

	return r.query(ctx, query, userID, roomID)
}

func (r *dailyStatRepository) ListByRoomDate(ctx context.Context, roomID uuid.UUID, statDate dates.Date) ([]models.DailyStat, error) {
	query := `
		SELECT user_id, room_id, stat_date, did_checkin, created_at
		FROM daily_stats
		WHERE room_id = $1 AND stat_date = $2`

	return r.query(ctx, query, roomID, statDate)
}

func (r *dailyStatRepository) query(ctx context.Context, query string, args ...any) ([]models.DailyStat, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var s models.DailyStat
		if err := rows.Scan(&s.UserID, &s.RoomID, &s.StatDate, &s.DidCheckin, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
