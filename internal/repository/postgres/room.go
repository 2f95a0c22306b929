package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type roomRepository struct {
	db repository.DBTX
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db repository.DBTX) repository.RoomRepository {
	return &roomRepository{db: db}
}

const roomColumns = `r.id, r.name, r.code, r.telegram_chat_id, r.created_at`

func scanRoom(row interface{ Scan(...any) error }) (*models.Room, error) {
	room := &models.Room{}
	var chatID sql.NullInt64
	if err := row.Scan(&room.ID, &room.Name, &room.Code, &chatID, &room.CreatedAt); err != nil {
		return nil, err
	}
	if chatID.Valid {
		id := chatID.Int64
		room.TelegramChatID = &id
	}
	return room, nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r WHERE r.id = $1`

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room by ID: %w", err)
	}

	return room, nil
}

func (r *roomRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r WHERE r.telegram_chat_id = $1`

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get room by chat ID: %w", err)
	}

	return room, nil
}

func (r *roomRepository) List(ctx context.Context, limit, offset int) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms r
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT $1 OFFSET $2`

	return r.queryRooms(ctx, "list rooms", query, limit, offset)
}

func (r *roomRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms r
		INNER JOIN room_members rm ON rm.room_id = r.id
		WHERE rm.user_id = $1
		ORDER BY rm.joined_at ASC`

	return r.queryRooms(ctx, "list rooms for user", query, userID)
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, roomID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check room membership: %w", err)
	}
	return ok, nil
}

func (r *roomRepository) queryRooms(ctx context.Context, what, query string, args ...any) ([]*models.Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", what, err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
