package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *repository.Repositories, *transactor) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, func() *repository.Repositories { return NewRepositories(db) }, &transactor{db: db}
}

func TestPlanGetByIDNotFound(t *testing.T) {
	mock, repos, _ := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM plans WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	plan, err := repos().Plans.GetByID(context.Background(), id)
	if err != nil || plan != nil {
		t.Fatalf("GetByID: want nil,nil got=%v,%v", plan, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPlanGetByIDScansNullableColumns(t *testing.T) {
	mock, repos, _ := newMock(t)
	id, owner := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "details", "start_date", "end_date", "recurrence_rule", "created_at", "updated_at"}).
		AddRow(id.String(), owner.String(), "Run", []byte(`{"km":5}`), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, "FREQ=DAILY", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM plans WHERE id = $1")).WithArgs(id).WillReturnRows(rows)

	plan, err := repos().Plans.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if plan.UserID != owner || plan.StartDate.String() != "2024-01-01" || plan.EndDate != nil {
		t.Fatalf("plan: got=%+v", plan)
	}
	if plan.RecurrenceRule == nil || *plan.RecurrenceRule != "FREQ=DAILY" || string(plan.Details) != `{"km":5}` {
		t.Fatalf("optional columns: got rule=%v details=%s", plan.RecurrenceRule, plan.Details)
	}
}

func TestOverrideCreateMapsUniqueViolation(t *testing.T) {
	mock, repos, _ := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO plan_overrides")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repos().Overrides.Create(context.Background(), &models.PlanOverride{
		PlanID:  uuid.New(),
		UserID:  uuid.New(),
		Reason:  models.OverrideReasonWeather,
		ForDate: dates.MustParse("2024-01-01"),
	})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("Create: want ErrConflict got=%v", err)
	}
}

func TestDailyStatUpsert(t *testing.T) {
	mock, repos, _ := newMock(t)
	stat := &models.DailyStat{
		UserID:     uuid.New(),
		RoomID:     uuid.New(),
		StatDate:   dates.MustParse("2024-01-02"),
		DidCheckin: true,
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, room_id, stat_date) DO UPDATE")).
		WithArgs(stat.UserID, stat.RoomID, "2024-01-02", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repos().DailyStats.Upsert(context.Background(), stat); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLeaderboardGetDecodesRanking(t *testing.T) {
	mock, repos, _ := newMock(t)
	room, team := uuid.New(), uuid.New()
	payload := `[{"team_id":"` + team.String() + `","team_name":"A","member_count":2,"total_points":30,"points_last7_days":10,"last_score_date":"2024-01-09"}]`

	mock.ExpectQuery(regexp.QuoteMeta("FROM leaderboards")).
		WithArgs(room, "2024-01-10").
		WillReturnRows(sqlmock.NewRows([]string{"room_id", "snapshot_date", "ranking", "created_at"}).
			AddRow(room.String(), "2024-01-10", []byte(payload), time.Now()))

	snap, err := repos().Leaderboards.Get(context.Background(), room, dates.MustParse("2024-01-10"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(snap.Ranking) != 1 || snap.Ranking[0].TeamID != team || snap.Ranking[0].LastScoreDate.String() != "2024-01-09" {
		t.Fatalf("ranking: got=%+v", snap.Ranking)
	}
}

func TestTeamCountMembers(t *testing.T) {
	mock, repos, _ := newMock(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM team_members")).
		WillReturnRows(sqlmock.NewRows([]string{"team_id", "count"}).AddRow(a.String(), 3))

	counts, err := repos().Teams.CountMembers(context.Background(), []uuid.UUID{a, b})
	if err != nil {
		t.Fatalf("CountMembers: %v", err)
	}
	if counts[a] != 3 || counts[b] != 0 {
		t.Fatalf("counts: got=%v", counts)
	}
}

func TestTransactorRollsBackOnError(t *testing.T) {
	mock, _, tx := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.InTx(context.Background(), func(*repository.Repositories) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("InTx: want boom got=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransactorCommits(t *testing.T) {
	mock, _, tx := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM plans")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.InTx(context.Background(), func(repos *repository.Repositories) error {
		return repos.Plans.Delete(context.Background(), uuid.New())
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
