package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

func TestDefaultSnapshotDate(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, 3, 10, 15, 59, 0, 0, time.UTC), "2024-03-09"},
		{time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC), "2024-03-10"},
		{time.Date(2024, 3, 1, 16, 30, 0, 0, time.UTC), "2024-03-01"},
		{time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), "2024-02-29"},
	}
	for _, tt := range tests {
		if got := DefaultSnapshotDate(tt.now, dates.ReferenceZone).String(); got != tt.want {
			t.Fatalf("default for %s: want=%s got=%s", tt.now, tt.want, got)
		}
	}
}

type leaderboardSetup struct {
	room   models.Room
	empty  models.Room
	member models.User
	alpha  models.Team
	beta   models.Team
}

func newLeaderboardSetup(t *testing.T, f *fixture) leaderboardSetup {
	t.Helper()
	chat := int64(-1001)
	room := f.store.AddRoom(models.Room{Name: "Gym", Code: "GYM1", TelegramChatID: &chat})
	empty := f.store.AddRoom(models.Room{Name: "Quiet", Code: "QUIET"})
	a := f.user("alice", "UTC")
	b := f.user("bob", "UTC")
	c := f.user("carol", "UTC")
	alpha := f.team(room, "Alpha", a)
	beta := f.team(room, "Beta", b, c)

	f.store.AddTeamScore(models.TeamScore{TeamID: beta.ID, RoomID: room.ID, ScoreDate: dates.MustParse("2024-03-09"), Points: 10, Reason: models.ScoreReasonAllCheckedIn})
	f.store.AddTeamScore(models.TeamScore{TeamID: alpha.ID, RoomID: room.ID, ScoreDate: dates.MustParse("2024-02-20"), Points: 10, Reason: models.ScoreReasonAllCheckedIn})
	// After the snapshot date; must not count.
	f.store.AddTeamScore(models.TeamScore{TeamID: alpha.ID, RoomID: room.ID, ScoreDate: dates.MustParse("2024-03-11"), Points: 50, Reason: models.ScoreReasonAllCheckedIn})
	return leaderboardSetup{room: room, empty: empty, member: a, alpha: alpha, beta: beta}
}

func TestBuildAllLeaderboards(t *testing.T) {
	// 17:00 UTC on the 10th: UTC+8 yesterday is the 10th.
	f := newFixture(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC))
	ls := newLeaderboardSetup(t, f)
	ctx := context.Background()

	report, err := f.svc.BuildAllLeaderboards(ctx, SnapshotRequest{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.SnapshotDate.String() != "2024-03-10" || report.Upserted != 1 || report.RoomsProcessed != 1 {
		t.Fatalf("report: want one room on 2024-03-10 got=%+v", report)
	}

	snap, _ := f.store.Repositories().Leaderboards.Get(ctx, ls.room.ID, dates.MustParse("2024-03-10"))
	if snap == nil || len(snap.Ranking) != 2 {
		t.Fatalf("snapshot: want 2 entries got=%+v", snap)
	}
	first, second := snap.Ranking[0], snap.Ranking[1]
	if first.TeamName != "Beta" || first.PointsLast7Days != 10 || first.MemberCount != 2 {
		t.Fatalf("first: want Beta 10/2 got=%+v", first)
	}
	if second.TeamName != "Alpha" || second.TotalPoints != 10 || second.PointsLast7Days != 0 {
		t.Fatalf("second: want Alpha total=10 last7=0 got=%+v", second)
	}
	if second.LastScoreDate == nil || second.LastScoreDate.String() != "2024-02-20" {
		t.Fatalf("alpha last score date: want=2024-02-20 got=%v", second.LastScoreDate)
	}
	if empty, _ := f.store.Repositories().Leaderboards.Get(ctx, ls.empty.ID, dates.MustParse("2024-03-10")); empty != nil {
		t.Fatalf("room without teams must not get a snapshot")
	}
}

func TestBuildAllLeaderboardsIsolatesRoomFailures(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC))
	ls := newLeaderboardSetup(t, f)
	other := f.store.AddRoom(models.Room{Name: "Pool", Code: "POOL"})
	f.team(other, "Sharks", f.user("dave", "UTC"))

	boom := errors.New("write failed")
	f.store.UpsertErr = func(roomID uuid.UUID) error {
		if roomID == ls.room.ID {
			return boom
		}
		return nil
	}

	report, err := f.svc.BuildAllLeaderboards(context.Background(), SnapshotRequest{Date: "2024-03-10"})
	if !errors.Is(err, boom) {
		t.Fatalf("error: want=%v got=%v", boom, err)
	}
	if report.Failed != 1 || report.Upserted != 1 || len(report.Snapshots) != 1 || report.Snapshots[0].RoomID != other.ID {
		t.Fatalf("report: want pool written and gym failed got=%+v", report)
	}
}

func TestBuildAllLeaderboardsDryRun(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC))
	ls := newLeaderboardSetup(t, f)

	report, err := f.svc.BuildAllLeaderboards(context.Background(), SnapshotRequest{Date: "2024-03-10", DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Upserted != 0 || len(report.Rooms) != 1 || report.Rooms[0].RoomID != ls.room.ID {
		t.Fatalf("dry run report: got=%+v", report)
	}
	if snap, _ := f.store.Repositories().Leaderboards.Get(context.Background(), ls.room.ID, dates.MustParse("2024-03-10")); snap != nil {
		t.Fatalf("dry run wrote a snapshot")
	}
}

func TestGetLeaderboardMeta(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC))
	ls := newLeaderboardSetup(t, f)
	ctx := context.Background()
	for _, d := range []string{"2024-03-09", "2024-03-10"} {
		if _, err := f.svc.BuildLeaderboard(ctx, ls.room.ID, dates.MustParse(d)); err != nil {
			t.Fatalf("build %s: %v", d, err)
		}
	}

	view, err := f.svc.GetLeaderboard(ctx, ls.member.ID, ls.room.ID, "")
	if err != nil {
		t.Fatalf("default read: %v", err)
	}
	if !view.Meta.DefaultedDate || view.Meta.UsedDate.String() != "2024-03-10" || view.Meta.Note != DefaultedDateNote {
		t.Fatalf("default meta: got=%+v", view.Meta)
	}

	view, err = f.svc.GetLeaderboard(ctx, ls.member.ID, ls.room.ID, "2024-03-09")
	if err != nil {
		t.Fatalf("explicit read: %v", err)
	}
	if view.Meta.DefaultedDate || view.Meta.Note != "" || view.Snapshot.SnapshotDate.String() != "2024-03-09" {
		t.Fatalf("explicit meta: got=%+v", view.Meta)
	}

	if _, err := f.svc.GetLeaderboard(ctx, ls.member.ID, ls.room.ID, "2024-01-01"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("missing snapshot: want=%v got=%v", ErrSnapshotNotFound, err)
	}
	outsider := f.user("eve", "UTC")
	if _, err := f.svc.GetLeaderboard(ctx, outsider.ID, ls.room.ID, ""); !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("outsider: want=%v got=%v", ErrNotRoomMember, err)
	}
	if _, err := f.svc.GetLeaderboard(ctx, ls.member.ID, ls.room.ID, "03/09/2024"); !IsValidation(err) {
		t.Fatalf("bad date: want validation error got=%v", err)
	}
}

type recordingAnnouncer struct {
	rooms []uuid.UUID
}

func (a *recordingAnnouncer) Announce(_ context.Context, room *models.Room, _ *models.LeaderboardSnapshot) error {
	a.rooms = append(a.rooms, room.ID)
	return nil
}

func TestAnnounceSnapshotsOnlyForBoundRooms(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC))
	ls := newLeaderboardSetup(t, f)
	other := f.store.AddRoom(models.Room{Name: "Pool", Code: "POOL"})
	f.team(other, "Sharks", f.user("dave", "UTC"))

	report, err := f.svc.BuildAllLeaderboards(context.Background(), SnapshotRequest{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a := &recordingAnnouncer{}
	if err := f.svc.AnnounceSnapshots(context.Background(), a, report.Snapshots); err != nil {
		t.Fatalf("announce: %v", err)
	}
	if len(a.rooms) != 1 || a.rooms[0] != ls.room.ID {
		t.Fatalf("announced rooms: want=[%s] got=%v", ls.room.ID, a.rooms)
	}

	room, snap, err := f.svc.LatestLeaderboard(context.Background(), *ls.room.TelegramChatID)
	if err != nil || room.ID != ls.room.ID || snap.Leader().TeamName != "Beta" {
		t.Fatalf("latest: want Beta leading got=%+v err=%v", snap, err)
	}
	if _, _, err := f.svc.LatestLeaderboard(context.Background(), 42); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("unbound chat: want=%v got=%v", ErrRoomNotFound, err)
	}
}
