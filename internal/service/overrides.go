package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

// OverrideInput is the justification a client sends with a locked mutation.
type OverrideInput struct {
	Reason  string  `json:"reason"`
	ForDate *string `json:"for_date,omitempty"`
	Note    *string `json:"note,omitempty"`
}

// buildOverride validates in and returns the record to append. fallback is
// used when in has no date of its own.
func buildOverride(planID, userID uuid.UUID, in OverrideInput, fallback dates.Date) (*models.PlanOverride, error) {
	reason := models.OverrideReason(strings.TrimSpace(in.Reason))
	if !reason.IsValid() {
		return nil, invalid("reason", "must be one of period, weather, other")
	}

	forDate := fallback
	if in.ForDate != nil && *in.ForDate != "" {
		d, err := dates.Parse(*in.ForDate)
		if err != nil {
			return nil, invalid("for_date", "%v", err)
		}
		forDate = d
	}

	var note *string
	if in.Note != nil {
		if trimmed := strings.TrimSpace(*in.Note); trimmed != "" {
			note = &trimmed
		}
	}
	if reason == models.OverrideReasonOther && note == nil {
		return nil, invalid("note", "a note is required when the reason is other")
	}

	return &models.PlanOverride{
		PlanID:  planID,
		UserID:  userID,
		Reason:  reason,
		ForDate: forDate,
		Note:    note,
	}, nil
}

// RecordOverride appends an override. It never checks whether a lock
// applied; that is the caller's concern.
func (s *Service) RecordOverride(ctx context.Context, planID, userID uuid.UUID, in OverrideInput, fallback dates.Date) (*models.PlanOverride, error) {
	o, err := buildOverride(planID, userID, in, fallback)
	if err != nil {
		return nil, err
	}
	return s.appendOverride(ctx, s.repos, o)
}

func (s *Service) appendOverride(ctx context.Context, repos *repository.Repositories, o *models.PlanOverride) (*models.PlanOverride, error) {
	created, err := repos.Overrides.Create(ctx, o)
	if err != nil {
		return nil, err
	}
	s.metrics.OverridesRecorded.WithLabelValues(string(o.Reason)).Inc()
	s.logger.WithFields(logrus.Fields{
		"plan_id":  o.PlanID,
		"user_id":  o.UserID,
		"reason":   o.Reason,
		"for_date": o.ForDate,
	}).Info("Plan override recorded")
	return created, nil
}

// RequestOverride records an override for an owned plan without mutating it.
func (s *Service) RequestOverride(ctx context.Context, userID, planID uuid.UUID, in OverrideInput) (*models.PlanOverride, error) {
	if _, err := buildOverride(planID, userID, in, dates.Date{}); err != nil {
		return nil, err
	}
	plan, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return s.RecordOverride(ctx, planID, userID, in, plan.StartDate)
}

// SortOverrides orders overrides newest first by creation time, using the
// target date when a creation time is missing.
func SortOverrides(list []models.PlanOverride) {
	key := func(o models.PlanOverride) time.Time {
		if o.CreatedAt != nil {
			return *o.CreatedAt
		}
		return o.ForDate.Time()
	}
	sort.SliceStable(list, func(i, j int) bool {
		return key(list[i]).After(key(list[j]))
	})
}
