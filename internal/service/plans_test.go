package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
	"github.com/Kerhoff/fitrooms/internal/repository/memory"
)

func TestIsLockedBoundary(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	day := dates.MustParse("2024-03-10")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day before", time.Date(2024, 3, 9, 23, 0, 0, 0, shanghai), false},
		{"one second before lock", time.Date(2024, 3, 10, 9, 59, 59, 0, shanghai), false},
		{"at lock", time.Date(2024, 3, 10, 10, 0, 0, 0, shanghai), true},
		{"later that day", time.Date(2024, 3, 10, 18, 0, 0, 0, shanghai), true},
		{"days after", time.Date(2024, 3, 15, 8, 0, 0, 0, shanghai), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLocked(day, shanghai, tt.now); got != tt.want {
				t.Fatalf("locked: want=%v got=%v", tt.want, got)
			}
		})
	}
}

func TestLockFollowsUserTimezone(t *testing.T) {
	// 10:30 in Shanghai is 21:30 the previous evening in New York.
	now := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	ny := f.user("ny", "America/New_York")
	sh := f.user("sh", "Asia/Shanghai")
	nyPlan := f.plan(t, ny.ID, "Run", "2024-03-10", "")
	shPlan := f.plan(t, sh.ID, "Run", "2024-03-10", "")

	ctx := context.Background()
	if _, err := f.svc.UpdatePlan(ctx, ny.ID, nyPlan.ID, UpdatePlanInput{Title: strPtr("Long run")}); err != nil {
		t.Fatalf("new york update: want=nil got=%v", err)
	}
	if _, err := f.svc.UpdatePlan(ctx, sh.ID, shPlan.ID, UpdatePlanInput{Title: strPtr("Long run")}); !errors.Is(err, ErrPlanLocked) {
		t.Fatalf("shanghai update: want=%v got=%v", ErrPlanLocked, err)
	}
}

func TestUpdateLockedPlanRequiresOverride(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	f := newFixture(t, time.Date(2024, 3, 10, 10, 30, 0, 0, shanghai))
	u := f.user("alice", "Asia/Shanghai")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")
	ctx := context.Background()

	_, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{Title: strPtr("Legs and core")})
	if !errors.Is(err, ErrPlanLocked) {
		t.Fatalf("update without override: want=%v got=%v", ErrPlanLocked, err)
	}
	if got := testutil.ToFloat64(f.metrics.LockRejections.WithLabelValues("update")); got != 1 {
		t.Fatalf("lock rejections: want=1 got=%v", got)
	}
	if n := len(f.store.Overrides()); n != 0 {
		t.Fatalf("overrides after rejection: want=0 got=%d", n)
	}

	updated, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{
		Title:    strPtr("Legs and core"),
		Override: &OverrideInput{Reason: "weather"},
	})
	if err != nil {
		t.Fatalf("update with override: %v", err)
	}
	if updated.Title != "Legs and core" {
		t.Fatalf("title: want=%q got=%q", "Legs and core", updated.Title)
	}

	overrides := f.store.Overrides()
	if len(overrides) != 1 {
		t.Fatalf("overrides: want=1 got=%d", len(overrides))
	}
	o := overrides[0]
	if o.Reason != models.OverrideReasonWeather || o.ForDate.String() != "2024-03-10" || o.UserID != u.ID {
		t.Fatalf("override: want=weather/2024-03-10 got=%s/%s", o.Reason, o.ForDate)
	}
	if len(updated.Overrides) != 1 {
		t.Fatalf("returned overrides: want=1 got=%d", len(updated.Overrides))
	}
}

func TestUpdateBeforeLockNeedsNoOverride(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	f := newFixture(t, time.Date(2024, 3, 10, 9, 59, 59, 0, shanghai))
	u := f.user("alice", "Asia/Shanghai")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")

	if _, err := f.svc.UpdatePlan(context.Background(), u.ID, p.ID, UpdatePlanInput{Title: strPtr("Arms")}); err != nil {
		t.Fatalf("update: want=nil got=%v", err)
	}
	if n := len(f.store.Overrides()); n != 0 {
		t.Fatalf("overrides: want=0 got=%d", n)
	}
}

func TestUpdateUsesForDateForLock(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	f := newFixture(t, time.Date(2024, 3, 10, 12, 0, 0, 0, shanghai))
	u := f.user("alice", "Asia/Shanghai")
	p := f.plan(t, u.ID, "Swim", "2024-03-01", "FREQ=DAILY")
	ctx := context.Background()

	if _, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{
		RecurrenceRule: strPtr("FREQ=DAILY"),
		ForDate:        strPtr("2024-03-12"),
	}); err != nil {
		t.Fatalf("future occurrence: want=nil got=%v", err)
	}
	if _, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{
		RecurrenceRule: strPtr("FREQ=DAILY"),
		ForDate:        strPtr("2024-03-10"),
	}); !errors.Is(err, ErrPlanLocked) {
		t.Fatalf("today's occurrence: want=%v got=%v", ErrPlanLocked, err)
	}
}

func TestOverrideOtherRequiresNote(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	f := newFixture(t, time.Date(2024, 3, 11, 8, 0, 0, 0, shanghai))
	u := f.user("alice", "Asia/Shanghai")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")
	ctx := context.Background()

	_, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{
		Title:    strPtr("Rest"),
		Override: &OverrideInput{Reason: "other", Note: strPtr("   ")},
	})
	if !IsValidation(err) {
		t.Fatalf("blank note: want validation error got=%v", err)
	}
	if n := len(f.store.Overrides()); n != 0 {
		t.Fatalf("overrides after rejection: want=0 got=%d", n)
	}
	stored, _ := f.store.Repositories().Plans.GetByID(ctx, p.ID)
	if stored.Title != "Legs" {
		t.Fatalf("title after rejection: want=Legs got=%s", stored.Title)
	}

	if _, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{
		Title:    strPtr("Rest"),
		Override: &OverrideInput{Reason: "other", Note: strPtr("  sore knee ")},
	}); err != nil {
		t.Fatalf("update with note: %v", err)
	}
	overrides := f.store.Overrides()
	if len(overrides) != 1 || overrides[0].Note == nil || *overrides[0].Note != "sore knee" {
		t.Fatalf("note: want=%q got=%+v", "sore knee", overrides)
	}
}

func TestOverrideUnknownReason(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC))
	u := f.user("alice", "UTC")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")

	err := f.svc.DeletePlan(context.Background(), u.ID, p.ID, DeletePlanInput{Override: &OverrideInput{Reason: "lazy"}})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "reason" {
		t.Fatalf("reason: want validation on reason got=%v", err)
	}
}

func TestOverrideRolledBackWhenMutationFails(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	f := newFixtureWithTx(t, time.Date(2024, 3, 10, 11, 0, 0, 0, shanghai), func(s *memory.Store) repository.Transactor {
		return failingPlansTx{store: s}
	})
	u := f.user("alice", "Asia/Shanghai")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")
	ctx := context.Background()

	_, err := f.svc.UpdatePlan(ctx, u.ID, p.ID, UpdatePlanInput{
		Title:    strPtr("Arms"),
		Override: &OverrideInput{Reason: "period"},
	})
	if !errors.Is(err, errPlanWrite) {
		t.Fatalf("update: want=%v got=%v", errPlanWrite, err)
	}
	if n := len(f.store.Overrides()); n != 0 {
		t.Fatalf("overrides after failed update: want=0 got=%d", n)
	}

	err = f.svc.DeletePlan(ctx, u.ID, p.ID, DeletePlanInput{Override: &OverrideInput{Reason: "period"}})
	if !errors.Is(err, errPlanWrite) {
		t.Fatalf("delete: want=%v got=%v", errPlanWrite, err)
	}
	if n := len(f.store.Overrides()); n != 0 {
		t.Fatalf("overrides after failed delete: want=0 got=%d", n)
	}
}

func TestPlanNotOwned(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	owner := f.user("owner", "UTC")
	other := f.user("other", "UTC")
	p := f.plan(t, owner.ID, "Legs", "2024-03-10", "")
	ctx := context.Background()

	if _, err := f.svc.UpdatePlan(ctx, other.ID, p.ID, UpdatePlanInput{Title: strPtr("Mine")}); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("foreign update: want=%v got=%v", ErrPlanNotFound, err)
	}
	if err := f.svc.DeletePlan(ctx, other.ID, p.ID, DeletePlanInput{}); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("foreign delete: want=%v got=%v", ErrPlanNotFound, err)
	}
	if _, err := f.svc.RequestOverride(ctx, other.ID, p.ID, OverrideInput{Reason: "weather"}); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("foreign override: want=%v got=%v", ErrPlanNotFound, err)
	}
	if err := f.svc.DeletePlan(ctx, owner.ID, uuid.New(), DeletePlanInput{}); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("missing plan: want=%v got=%v", ErrPlanNotFound, err)
	}
}

func TestDeleteLockedPlanWithOverride(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC))
	u := f.user("alice", "Asia/Shanghai")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")
	ctx := context.Background()

	if err := f.svc.DeletePlan(ctx, u.ID, p.ID, DeletePlanInput{}); !errors.Is(err, ErrPlanLocked) {
		t.Fatalf("delete without override: want=%v got=%v", ErrPlanLocked, err)
	}
	if err := f.svc.DeletePlan(ctx, u.ID, p.ID, DeletePlanInput{Override: &OverrideInput{Reason: "period"}}); err != nil {
		t.Fatalf("delete with override: %v", err)
	}
	if got, _ := f.store.Repositories().Plans.GetByID(ctx, p.ID); got != nil {
		t.Fatalf("plan still present after delete")
	}

	kept, err := f.store.Repositories().Overrides.ListByPlans(ctx, []uuid.UUID{p.ID})
	if err != nil {
		t.Fatalf("list overrides: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("overrides after delete: want=1 got=%d", len(kept))
	}
	if kept[0].ForDate.String() != "2024-03-10" || kept[0].Reason != models.OverrideReasonPeriod {
		t.Fatalf("override: want=2024-03-10/period got=%s/%s", kept[0].ForDate, kept[0].Reason)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	u := f.user("alice", "UTC")
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreatePlanInput
		field string
	}{
		{"short title", CreatePlanInput{Title: " a ", StartDate: "2024-03-01"}, "title"},
		{"bad start", CreatePlanInput{Title: "Run", StartDate: "2024/03/01"}, "start_date"},
		{"end before start", CreatePlanInput{Title: "Run", StartDate: "2024-03-05", EndDate: strPtr("2024-03-01")}, "end_date"},
		{"bad rule", CreatePlanInput{Title: "Run", StartDate: "2024-03-01", RecurrenceRule: strPtr("FREQ=SOMETIMES")}, "recurrence_rule"},
		{"bad details", CreatePlanInput{Title: "Run", StartDate: "2024-03-01", Details: json.RawMessage(`{"sets":`)}, "details"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePlan(ctx, u.ID, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("field: want=%s got=%v", tt.field, err)
			}
		})
	}

	p, err := f.svc.CreatePlan(ctx, u.ID, CreatePlanInput{
		Title:          "  Tempo run  ",
		StartDate:      "2024-03-01",
		RecurrenceRule: strPtr("RRULE:FREQ=WEEKLY;BYDAY=TU"),
		Details:        json.RawMessage(`{"km":8}`),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Title != "Tempo run" || !p.HasRule() || p.Overrides == nil {
		t.Fatalf("created plan: got=%+v", p)
	}
}

func TestRequestOverrideAndListPlans(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC))
	u := f.user("alice", "UTC")
	p := f.plan(t, u.ID, "Legs", "2024-03-10", "")
	ctx := context.Background()

	if _, err := f.svc.RequestOverride(ctx, u.ID, p.ID, OverrideInput{Reason: "weather"}); err != nil {
		t.Fatalf("first override: %v", err)
	}
	f.clock.Set(f.clock.Now().Add(time.Hour))
	if _, err := f.svc.RequestOverride(ctx, u.ID, p.ID, OverrideInput{Reason: "period", ForDate: strPtr("2024-03-11")}); err != nil {
		t.Fatalf("second override: %v", err)
	}

	plans, err := f.svc.ListPlans(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 1 || len(plans[0].Overrides) != 2 {
		t.Fatalf("plans: want=1 plan with 2 overrides got=%+v", plans)
	}
	if plans[0].Overrides[0].Reason != models.OverrideReasonPeriod {
		t.Fatalf("newest override first: want=period got=%s", plans[0].Overrides[0].Reason)
	}
	if plans[0].Overrides[1].ForDate.String() != "2024-03-10" {
		t.Fatalf("fallback for_date: want=2024-03-10 got=%s", plans[0].Overrides[1].ForDate)
	}
}

func TestCalendar(t *testing.T) {
	shanghai := mustLoad(t, "Asia/Shanghai")
	f := newFixture(t, time.Date(2024, 1, 3, 12, 0, 0, 0, shanghai))
	u := f.user("alice", "Asia/Shanghai")
	f.plan(t, u.ID, "Zone 2", "2024-01-01", "FREQ=WEEKLY;BYDAY=MO,WE,FR")
	f.plan(t, u.ID, "Alpha", "2024-01-03", "")
	ctx := context.Background()

	days, err := f.svc.Calendar(ctx, u.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("days: want=3 got=%d", len(days))
	}
	want := []struct {
		date   string
		titles []string
		locked bool
	}{
		{"2024-01-01", []string{"Zone 2"}, true},
		{"2024-01-03", []string{"Alpha", "Zone 2"}, true},
		{"2024-01-05", []string{"Zone 2"}, false},
	}
	for i, w := range want {
		d := days[i]
		if d.Date.String() != w.date || len(d.Occurrences) != len(w.titles) {
			t.Fatalf("day %d: want=%s/%d got=%s/%d", i, w.date, len(w.titles), d.Date, len(d.Occurrences))
		}
		for j, title := range w.titles {
			if d.Occurrences[j].Title != title || d.Occurrences[j].Locked != w.locked {
				t.Fatalf("occurrence %s #%d: want=%s/%v got=%s/%v", w.date, j, title, w.locked, d.Occurrences[j].Title, d.Occurrences[j].Locked)
			}
		}
	}

	if _, err := f.svc.Calendar(ctx, u.ID, "2024-01-01", "2025-01-01"); !IsValidation(err) {
		t.Fatalf("wide window: want validation error got=%v", err)
	}
	if _, err := f.svc.Calendar(ctx, u.ID, "2024-01-07", "2024-01-01"); !IsValidation(err) {
		t.Fatalf("reversed window: want validation error got=%v", err)
	}
}

func TestUpdateRejectsBadRangeBeforeLookup(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	u := f.user("alice", "UTC")

	_, err := f.svc.UpdatePlan(context.Background(), u.ID, uuid.New(), UpdatePlanInput{
		StartDate: strPtr("2024-03-10"),
		EndDate:   strPtr("2024-03-01"),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("inverted range on missing plan: want=ValidationError got=%v", err)
	}
	if verr.Field != "end_date" {
		t.Fatalf("field: want=end_date got=%s", verr.Field)
	}
}
