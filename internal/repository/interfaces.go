package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

// ErrConflict is returned when a write violates a uniqueness constraint
var ErrConflict = errors.New("conflicting record already exists")

// DBTX is the subset of *sql.DB and *sql.Tx used by repositories
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// RoomRepository defines the interface for room and room membership reads
type RoomRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.Room, error)
	List(ctx context.Context, limit, offset int) ([]*models.Room, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Room, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// CheckinRepository answers check-in existence questions
type CheckinRepository interface {
	Exists(ctx context.Context, userID, roomID uuid.UUID, forDate dates.Date) (bool, error)
}

// PlanRepository defines the interface for plan data operations
type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OverrideRepository defines the interface for the append-only override ledger
type OverrideRepository interface {
	Create(ctx context.Context, override *models.PlanOverride) (*models.PlanOverride, error)
	ListByPlans(ctx context.Context, planIDs []uuid.UUID) ([]*models.PlanOverride, error)
}

// DailyStatRepository defines the interface for settled daily statistics
type DailyStatRepository interface {
	Upsert(ctx context.Context, stat *models.DailyStat) error
	ListByUserRoom(ctx context.Context, userID, roomID uuid.UUID) ([]models.DailyStat, error)
	ListByRoomDate(ctx context.Context, roomID uuid.UUID, statDate dates.Date) ([]models.DailyStat, error)
}

// TeamRepository defines the interface for team reads
type TeamRepository interface {
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Team, error)
	GetForUserInRoom(ctx context.Context, userID, roomID uuid.UUID) (*models.Team, error)
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error)
	CountMembers(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// TeamScoreRepository defines the interface for the append-only score log
type TeamScoreRepository interface {
	Create(ctx context.Context, score *models.TeamScore) (*models.TeamScore, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, upTo *dates.Date) ([]models.TeamScore, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.TeamScore, error)
	Exists(ctx context.Context, teamID uuid.UUID, scoreDate dates.Date, reason string) (bool, error)
}

// TeamStreakRepository defines the interface for stored team streaks
type TeamStreakRepository interface {
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.TeamStreak, error)
	Create(ctx context.Context, streak *models.TeamStreak) (*models.TeamStreak, error)
	Update(ctx context.Context, streak *models.TeamStreak) error
}

// LeaderboardRepository defines the interface for leaderboard snapshots
type LeaderboardRepository interface {
	Upsert(ctx context.Context, snapshot *models.LeaderboardSnapshot) (*models.LeaderboardSnapshot, error)
	Get(ctx context.Context, roomID uuid.UUID, snapshotDate dates.Date) (*models.LeaderboardSnapshot, error)
}

// Repositories bundles every repository over one connection or transaction
type Repositories struct {
	Users        UserRepository
	Rooms        RoomRepository
	Checkins     CheckinRepository
	Plans        PlanRepository
	Overrides    OverrideRepository
	DailyStats   DailyStatRepository
	Teams        TeamRepository
	TeamScores   TeamScoreRepository
	TeamStreaks  TeamStreakRepository
	Leaderboards LeaderboardRepository
}

// Transactor runs fn against repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(repos *Repositories) error) error
}
