package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type overrideRepository struct {
	db repository.DBTX
}

// NewOverrideRepository creates a new plan override repository
func NewOverrideRepository(db repository.DBTX) repository.OverrideRepository {
	return &overrideRepository{db: db}
}

func (r *overrideRepository) Create(ctx context.Context, o *models.PlanOverride) (*models.PlanOverride, error) {
	query := `INSERT INTO plan_overrides (id, plan_id, user_id, reason, for_date, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt = &now

	err := r.db.QueryRowContext(ctx, query,
		o.ID, o.PlanID, o.UserID, string(o.Reason), o.ForDate, o.Note, now,
	).Scan(o.CreatedAt)
	if err != nil {
		return nil, wrapWriteError("create plan override", err)
	}
	return o, nil
}

func (r *overrideRepository) ListByPlans(ctx context.Context, planIDs []uuid.UUID) ([]*models.PlanOverride, error) {
	if len(planIDs) == 0 {
		return nil, nil
	}

	query := `SELECT id, plan_id, user_id, reason, for_date, note, created_at
		FROM plan_overrides
		WHERE plan_id = ANY($1)
		ORDER BY created_at DESC NULLS LAST, for_date DESC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(planIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to query plan overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*models.PlanOverride
	for rows.Next() {
		o := &models.PlanOverride{}
		var reason string
		if err := rows.Scan(&o.ID, &o.PlanID, &o.UserID, &reason, &o.ForDate, &o.Note, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan override: %w", err)
		}
		o.Reason = models.OverrideReason(reason)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
