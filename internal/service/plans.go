package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/recurrence"
	"github.com/Kerhoff/fitrooms/internal/repository"
	"github.com/Kerhoff/fitrooms/internal/scoring"
)

const (
	minTitleLength = 2
	maxTitleLength = 100
	// maxCalendarDays bounds the window a calendar request may expand.
	maxCalendarDays = 366
)

// CreatePlanInput is the payload for a new plan.
type CreatePlanInput struct {
	Title          string          `json:"title"`
	Details        json.RawMessage `json:"details,omitempty"`
	StartDate      string          `json:"start_date"`
	EndDate        *string         `json:"end_date,omitempty"`
	RecurrenceRule *string         `json:"recurrence_rule,omitempty"`
}

// UpdatePlanInput replaces a plan. Title and start date keep their value when
// omitted; details, end date and recurrence rule are cleared when omitted.
type UpdatePlanInput struct {
	Title          *string         `json:"title,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	StartDate      *string         `json:"start_date,omitempty"`
	EndDate        *string         `json:"end_date,omitempty"`
	RecurrenceRule *string         `json:"recurrence_rule,omitempty"`
	// ForDate is the occurrence being edited; the start date when absent.
	ForDate  *string        `json:"for_date,omitempty"`
	Override *OverrideInput `json:"override,omitempty"`
}

// DeletePlanInput carries the optional target date and override of a delete.
type DeletePlanInput struct {
	ForDate  *string        `json:"for_date,omitempty"`
	Override *OverrideInput `json:"override,omitempty"`
}

func validateTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	n := utf8.RuneCountInString(t)
	if n < minTitleLength || n > maxTitleLength {
		return "", invalid("title", "must be between %d and %d characters", minTitleLength, maxTitleLength)
	}
	return t, nil
}

func parseDateField(field, value string) (dates.Date, error) {
	d, err := dates.Parse(value)
	if err != nil {
		return dates.Date{}, invalid(field, "must be formatted as YYYY-MM-DD")
	}
	return d, nil
}

func parseOptionalDate(field string, value *string) (*dates.Date, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := parseDateField(field, *value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func validateRule(rule *string) (*string, error) {
	if rule == nil || strings.TrimSpace(*rule) == "" {
		return nil, nil
	}
	normalized := strings.TrimSpace(*rule)
	if err := recurrence.Validate(normalized); err != nil {
		return nil, invalid("recurrence_rule", "%v", err)
	}
	return &normalized, nil
}

func validateDetails(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, invalid("details", "must be valid JSON")
	}
	return raw, nil
}

func checkRange(start dates.Date, end *dates.Date) error {
	if end != nil && end.Before(start) {
		return invalid("end_date", "must not be before start_date")
	}
	return nil
}

// CreatePlan validates and stores a new plan. New plans are never locked.
func (s *Service) CreatePlan(ctx context.Context, userID uuid.UUID, in CreatePlanInput) (*models.Plan, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	start, err := parseDateField("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	rule, err := validateRule(in.RecurrenceRule)
	if err != nil {
		return nil, err
	}
	details, err := validateDetails(in.Details)
	if err != nil {
		return nil, err
	}

	plan, err := s.repos.Plans.Create(ctx, &models.Plan{
		UserID:         userID,
		Title:          title,
		Details:        details,
		StartDate:      start,
		EndDate:        end,
		RecurrenceRule: rule,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	plan.Overrides = []models.PlanOverride{}

	s.logger.WithFields(logrus.Fields{"plan_id": plan.ID, "user_id": userID}).Info("Plan created")
	return plan, nil
}

// ownedPlan loads a plan and checks ownership. Missing and foreign plans
// both yield ErrPlanNotFound.
func (s *Service) ownedPlan(ctx context.Context, userID, planID uuid.UUID) (*models.Plan, error) {
	plan, err := s.repos.Plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil || !plan.OwnedBy(userID) {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// UpdatePlan replaces an owned plan. Without an override the target date
// must not be locked; with one, the override and the update are written in
// one transaction, override first.
func (s *Service) UpdatePlan(ctx context.Context, userID, planID uuid.UUID, in UpdatePlanInput) (*models.Plan, error) {
	target, err := parseOptionalDate("for_date", in.ForDate)
	if err != nil {
		return nil, err
	}
	if in.Override != nil {
		if _, err := buildOverride(planID, userID, *in.Override, dates.Date{}); err != nil {
			return nil, err
		}
	}
	var title *string
	if in.Title != nil {
		t, err := validateTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		title = &t
	}
	newStart, err := parseOptionalDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	rule, err := validateRule(in.RecurrenceRule)
	if err != nil {
		return nil, err
	}
	details, err := validateDetails(in.Details)
	if err != nil {
		return nil, err
	}
	if newStart != nil {
		if err := checkRange(*newStart, end); err != nil {
			return nil, err
		}
	}

	plan, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	lockDate := plan.StartDate
	if target != nil {
		lockDate = *target
	}

	updated := *plan
	if title != nil {
		updated.Title = *title
	}
	if newStart != nil {
		updated.StartDate = *newStart
	}
	updated.Details = details
	updated.EndDate = end
	updated.RecurrenceRule = rule
	if err := checkRange(updated.StartDate, updated.EndDate); err != nil {
		return nil, err
	}

	if in.Override == nil {
		if err := s.ensureUnlocked(ctx, userID, lockDate, "update"); err != nil {
			return nil, err
		}
		result, err := s.repos.Plans.Update(ctx, &updated)
		if err != nil {
			return nil, fmt.Errorf("failed to update plan: %w", err)
		}
		return s.withOverrides(ctx, result)
	}

	override, err := buildOverride(planID, userID, *in.Override, lockDate)
	if err != nil {
		return nil, err
	}
	var result *models.Plan
	err = s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		if _, err := s.appendOverride(ctx, repos, override); err != nil {
			return fmt.Errorf("failed to record plan override: %w", err)
		}
		res, err := repos.Plans.Update(ctx, &updated)
		if err != nil {
			return fmt.Errorf("failed to update plan: %w", err)
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.withOverrides(ctx, result)
}

// DeletePlan removes an owned plan under the same lock rules as UpdatePlan.
func (s *Service) DeletePlan(ctx context.Context, userID, planID uuid.UUID, in DeletePlanInput) error {
	target, err := parseOptionalDate("for_date", in.ForDate)
	if err != nil {
		return err
	}
	if in.Override != nil {
		if _, err := buildOverride(planID, userID, *in.Override, dates.Date{}); err != nil {
			return err
		}
	}

	plan, err := s.ownedPlan(ctx, userID, planID)
	if err != nil {
		return err
	}
	lockDate := plan.StartDate
	if target != nil {
		lockDate = *target
	}

	if in.Override == nil {
		if err := s.ensureUnlocked(ctx, userID, lockDate, "delete"); err != nil {
			return err
		}
		if err := s.repos.Plans.Delete(ctx, planID); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		s.logger.WithFields(logrus.Fields{"plan_id": planID, "user_id": userID}).Info("Plan deleted")
		return nil
	}

	override, err := buildOverride(planID, userID, *in.Override, lockDate)
	if err != nil {
		return err
	}
	err = s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		if _, err := s.appendOverride(ctx, repos, override); err != nil {
			return fmt.Errorf("failed to record plan override: %w", err)
		}
		if err := repos.Plans.Delete(ctx, planID); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"plan_id": planID, "user_id": userID}).Info("Plan deleted with override")
	return nil
}

// ListPlans returns the user's plans, newest start date first, each with its
// override history.
func (s *Service) ListPlans(ctx context.Context, userID uuid.UUID) ([]*models.Plan, error) {
	plans, err := s.repos.Plans.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	if err := s.attachOverrides(ctx, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Service) withOverrides(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	if err := s.attachOverrides(ctx, []*models.Plan{plan}); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) attachOverrides(ctx context.Context, plans []*models.Plan) error {
	ids := make([]uuid.UUID, 0, len(plans))
	byID := make(map[uuid.UUID]*models.Plan, len(plans))
	for _, p := range plans {
		p.Overrides = []models.PlanOverride{}
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	if len(ids) == 0 {
		return nil
	}

	overrides, err := s.repos.Overrides.ListByPlans(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to list plan overrides: %w", err)
	}
	for _, o := range overrides {
		if p, ok := byID[o.PlanID]; ok {
			p.Overrides = append(p.Overrides, *o)
		}
	}
	for _, p := range plans {
		SortOverrides(p.Overrides)
	}
	return nil
}

// Calendar expands the user's plans over [from, to] and groups them per
// date. Occurrences on a date are ordered by title and carry their lock
// state for the user's timezone.
func (s *Service) Calendar(ctx context.Context, userID uuid.UUID, from, to string) ([]models.CalendarDay, error) {
	start, err := parseDateField("from", from)
	if err != nil {
		return nil, err
	}
	end, err := parseDateField("to", to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, invalid("to", "must not be before from")
	}
	if start.DaysUntil(end) >= maxCalendarDays {
		return nil, invalid("to", "window must be shorter than %d days", maxCalendarDays)
	}

	plans, err := s.repos.Plans.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	loc, err := s.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	grouped := make(map[dates.Date][]models.PlanOccurrence)
	for _, plan := range plans {
		for _, d := range s.expander.Expand(plan, start, end) {
			grouped[d] = append(grouped[d], models.PlanOccurrence{
				PlanID: plan.ID,
				Title:  plan.Title,
				Date:   d,
				Locked: IsLocked(d, loc, now),
				Plan:   plan,
			})
		}
	}

	days := make([]models.CalendarDay, 0, len(grouped))
	col := scoring.NameCollator()
	for d, occurrences := range grouped {
		sort.SliceStable(occurrences, func(i, j int) bool {
			return col.CompareString(occurrences[i].Title, occurrences[j].Title) < 0
		})
		days = append(days, models.CalendarDay{Date: d, Occurrences: occurrences})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}
