package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type teamRepository struct {
	db repository.DBTX
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db repository.DBTX) repository.TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Team, error) {
	query := `SELECT id, room_id, name, created_at FROM teams WHERE room_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.RoomID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *teamRepository) GetForUserInRoom(ctx context.Context, userID, roomID uuid.UUID) (*models.Team, error) {
	query := `
		SELECT t.id, t.room_id, t.name, t.created_at
		FROM teams t
		INNER JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1 AND t.room_id = $2`

	t := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, userID, roomID).Scan(&t.ID, &t.RoomID, &t.Name, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team for user: %w", err)
	}
	return t, nil
}

func (r *teamRepository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	query := `
		SELECT tm.team_id, tm.user_id, u.username, u.display_name, tm.joined_at
		FROM team_members tm
		INNER JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at ASC`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	var members []models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Username, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *teamRepository) CountMembers(ctx context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(teamIDs))
	if len(teamIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT team_id, COUNT(*)
		FROM team_members
		WHERE team_id = ANY($1)
		GROUP BY team_id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(teamIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to count team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan team member count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

type teamScoreRepository struct {
	db repository.DBTX
}

// NewTeamScoreRepository creates a new team score repository
func NewTeamScoreRepository(db repository.DBTX) repository.TeamScoreRepository {
	return &teamScoreRepository{db: db}
}

func (r *teamScoreRepository) Create(ctx context.Context, s *models.TeamScore) (*models.TeamScore, error) {
	query := `INSERT INTO team_scores (id, team_id, room_id, score_date, points, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.TeamID, s.RoomID, s.ScoreDate, s.Points, s.Reason, s.CreatedAt,
	).Scan(&s.CreatedAt)
	if err != nil {
		return nil, wrapWriteError("create team score", err)
	}
	return s, nil
}

func (r *teamScoreRepository) ListByRoom(ctx context.Context, roomID uuid.UUID, upTo *dates.Date) ([]models.TeamScore, error) {
	query := `SELECT id, team_id, room_id, score_date, points, reason, created_at
		FROM team_scores WHERE room_id = $1`
	args := []interface{}{roomID}

	if upTo != nil {
		query += " AND score_date <= $2"
		args = append(args, *upTo)
	}
	query += " ORDER BY score_date ASC"

	return r.query(ctx, query, args...)
}

func (r *teamScoreRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.TeamScore, error) {
	query := `SELECT id, team_id, room_id, score_date, points, reason, created_at
		FROM team_scores WHERE team_id = $1
		ORDER BY score_date ASC`

	return r.query(ctx, query, teamID)
}

func (r *teamScoreRepository) Exists(ctx context.Context, teamID uuid.UUID, scoreDate dates.Date, reason string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM team_scores WHERE team_id = $1 AND score_date = $2 AND reason = $3
	)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, teamID, scoreDate, reason).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check team score: %w", err)
	}
	return ok, nil
}

func (r *teamScoreRepository) query(ctx context.Context, query string, args ...any) ([]models.TeamScore, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query team scores: %w", err)
	}
	defer rows.Close()

	var scores []models.TeamScore
	for rows.Next() {
		var s models.TeamScore
		if err := rows.Scan(&s.ID, &s.TeamID, &s.RoomID, &s.ScoreDate, &s.Points, &s.Reason, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

type teamStreakRepository struct {
	db repository.DBTX
}

// NewTeamStreakRepository creates a new team streak repository
func NewTeamStreakRepository(db repository.DBTX) repository.TeamStreakRepository {
	return &teamStreakRepository{db: db}
}

func (r *teamStreakRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]models.TeamStreak, error) {
	query := `SELECT id, team_id, start_date, end_date, length
		FROM team_streaks WHERE team_id = $1
		ORDER BY start_date ASC`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team streaks: %w", err)
	}
	defer rows.Close()

	var streaks []models.TeamStreak
	for rows.Next() {
		var s models.TeamStreak
		if err := rows.Scan(&s.ID, &s.TeamID, &s.StartDate, &s.EndDate, &s.Length); err != nil {
			return nil, fmt.Errorf("failed to scan team streak: %w", err)
		}
		streaks = append(streaks, s)
	}
	return streaks, rows.Err()
}

func (r *teamStreakRepository) Create(ctx context.Context, s *models.TeamStreak) (*models.TeamStreak, error) {
	query := `INSERT INTO team_streaks (id, team_id, start_date, end_date, length)
		VALUES ($1, $2, $3, $4, $5)`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.TeamID, s.StartDate, s.EndDate, s.Length); err != nil {
		return nil, wrapWriteError("create team streak", err)
	}
	return s, nil
}

func (r *teamStreakRepository) Update(ctx context.Context, s *models.TeamStreak) error {
	query := `UPDATE team_streaks SET end_date = $2, length = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, s.ID, s.EndDate, s.Length)
	if err != nil {
		return fmt.Errorf("failed to update team streak: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("team streak %s not found", s.ID)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
