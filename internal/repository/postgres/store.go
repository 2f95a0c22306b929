package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/fitrooms/internal/repository"
)

// NewRepositories builds every repository over db, which may be a *sql.DB or
// a *sql.Tx.
func NewRepositories(db repository.DBTX) *repository.Repositories {
	return &repository.Repositories{
		Users:        NewUserRepository(db),
		Rooms:        NewRoomRepository(db),
		Checkins:     NewCheckinRepository(db),
		Plans:        NewPlanRepository(db),
		Overrides:    NewOverrideRepository(db),
		DailyStats:   NewDailyStatRepository(db),
		Teams:        NewTeamRepository(db),
		TeamScores:   NewTeamScoreRepository(db),
		TeamStreaks:  NewTeamStreakRepository(db),
		Leaderboards: NewLeaderboardRepository(db),
	}
}

type transactor struct {
	db *sql.DB
}

// NewTransactor creates a transactor over db
func NewTransactor(db *sql.DB) repository.Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(NewRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
