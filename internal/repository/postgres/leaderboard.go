package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type leaderboardRepository struct {
	db repository.DBTX
}

// NewLeaderboardRepository creates a new leaderboard snapshot repository
func NewLeaderboardRepository(db repository.DBTX) repository.LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) Upsert(ctx context.Context, snap *models.LeaderboardSnapshot) (*models.LeaderboardSnapshot, error) {
	query := `
		INSERT INTO leaderboards (room_id, snapshot_date, ranking, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (room_id, snapshot_date) DO UPDATE
		SET ranking = EXCLUDED.ranking, created_at = EXCLUDED.created_at
		RETURNING created_at`

	ranking := snap.Ranking
	if ranking == nil {
		ranking = []models.RankingEntry{}
	}
	payload, err := json.Marshal(ranking)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ranking: %w", err)
	}

	var createdAt sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, snap.RoomID, snap.SnapshotDate, string(payload)).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("failed to upsert leaderboard: %w", err)
	}
	if createdAt.Valid {
		snap.CreatedAt = &createdAt.Time
	}
	return snap, nil
}

func (r *leaderboardRepository) Get(ctx context.Context, roomID uuid.UUID, snapshotDate dates.Date) (*models.LeaderboardSnapshot, error) {
	query := `
		SELECT room_id, snapshot_date, ranking, created_at
		FROM leaderboards
		WHERE room_id = $1 AND snapshot_date = $2`

	snap := &models.LeaderboardSnapshot{}
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, roomID, snapshotDate).Scan(
		&snap.RoomID, &snap.SnapshotDate, &payload, &snap.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	if err := json.Unmarshal(payload, &snap.Ranking); err != nil {
		return nil, fmt.Errorf("failed to decode ranking: %w", err)
	}
	return snap, nil
}
