package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type planRepository struct {
	db repository.DBTX
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db repository.DBTX) repository.PlanRepository {
	return &planRepository{db: db}
}

const planColumns = `id, user_id, title, details, start_date, end_date, recurrence_rule, created_at, updated_at`

func scanPlan(row interface{ Scan(...any) error }) (*models.Plan, error) {
	plan := &models.Plan{}
	var details []byte
	if err := row.Scan(
		&plan.ID,
		&plan.UserID,
		&plan.Title,
		&details,
		&plan.StartDate,
		&plan.EndDate,
		&plan.RecurrenceRule,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		plan.Details = json.RawMessage(details)
	}
	return plan, nil
}

// jsonArg passes a raw JSON document as text so jsonb columns accept it.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

func (r *planRepository) Create(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	query := `
		INSERT INTO plans (id, user_id, title, details, start_date, end_date, recurrence_rule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		plan.ID,
		plan.UserID,
		plan.Title,
		jsonArg(plan.Details),
		plan.StartDate,
		plan.EndDate,
		plan.RecurrenceRule,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)

	if err != nil {
		return nil, wrapWriteError("create plan", err)
	}

	return plan, nil
}

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan by ID: %w", err)
	}

	return plan, nil
}

func (r *planRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Plan, error) {
	query := `SELECT ` + planColumns + `
		FROM plans
		WHERE user_id = $1
		ORDER BY start_date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *planRepository) Update(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	query := `
		UPDATE plans
		SET title = $2, details = $3, start_date = $4, end_date = $5, recurrence_rule = $6, updated_at = $7
		WHERE id = $1
		RETURNING updated_at`

	plan.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, query,
		plan.ID,
		plan.Title,
		jsonArg(plan.Details),
		plan.StartDate,
		plan.EndDate,
		plan.RecurrenceRule,
		plan.UpdatedAt,
	).Scan(&plan.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plan %s not found", plan.ID)
		}
		return nil, wrapWriteError("update plan", err)
	}

	return plan, nil
}

func (r *planRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("plan %s not found", id)
	}
	return nil
}
