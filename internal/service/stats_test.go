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

func TestRoomStatsRequiresMembership(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	room := f.store.AddRoom(models.Room{Name: "Gym", Code: "GYM1"})
	outsider := f.user("eve", "UTC")

	if _, err := f.svc.RoomStats(context.Background(), outsider.ID, room.ID); !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("outsider: want=%v got=%v", ErrNotRoomMember, err)
	}
	if _, err := f.svc.RoomStats(context.Background(), outsider.ID, uuid.New()); !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("unknown room: want=%v got=%v", ErrNotRoomMember, err)
	}
}

func TestRoomStatsBundle(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	ls := newLeaderboardSetup(t, f)
	loner := f.user("frank", "UTC")
	f.store.AddRoomMember(ls.room.ID, loner.ID)
	ctx := context.Background()

	f.settled(t, ls.room, "2024-03-07", map[uuid.UUID]bool{ls.member.ID: true})
	f.settled(t, ls.room, "2024-03-08", map[uuid.UUID]bool{ls.member.ID: true})
	f.settled(t, ls.room, "2024-03-09", map[uuid.UUID]bool{ls.member.ID: false})
	f.store.AddTeamStreak(models.TeamStreak{
		TeamID:    ls.alpha.ID,
		StartDate: dates.MustParse("2024-02-18"),
		EndDate:   dates.MustParse("2024-02-20"),
		Length:    3,
	})

	stats, err := f.svc.RoomStats(ctx, ls.member.ID, ls.room.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Room.ID != ls.room.ID {
		t.Fatalf("room: want=%s got=%s", ls.room.ID, stats.Room.ID)
	}
	p := stats.Personal
	if p.TotalDays != 3 || p.CompletedDays != 2 || p.LongestStreak != 2 || p.CurrentStreak != 0 {
		t.Fatalf("personal: got=%+v", p)
	}

	// Today is 2024-03-10 in UTC+8, so the 2024-03-11 score is not live yet.
	if len(stats.Scoreboard) != 2 || stats.Scoreboard[0].TeamName != "Beta" {
		t.Fatalf("scoreboard: got=%+v", stats.Scoreboard)
	}
	if stats.Scoreboard[0].IsUserTeam || !stats.Scoreboard[1].IsUserTeam {
		t.Fatalf("user team flag: got=%+v", stats.Scoreboard)
	}

	team := stats.Team
	if team == nil || team.TeamID != ls.alpha.ID || len(team.Members) != 1 {
		t.Fatalf("team: got=%+v", team)
	}
	if team.TotalPoints != 60 || team.PointsLast7Days != 0 {
		t.Fatalf("team points: want total=60 last7=0 got=%d/%d", team.TotalPoints, team.PointsLast7Days)
	}
	if team.CurrentStreak == nil || team.CurrentStreak.Length != 3 || team.LongestStreak == nil {
		t.Fatalf("team streaks: got=%+v/%+v", team.CurrentStreak, team.LongestStreak)
	}
	if len(team.History) != 2 || team.History[0].Date.String() != "2024-03-11" {
		t.Fatalf("team history: got=%+v", team.History)
	}
	if len(team.ReasonBreakdown) != 1 || team.ReasonBreakdown[0].Occurrences != 2 {
		t.Fatalf("breakdown: got=%+v", team.ReasonBreakdown)
	}

	lonerStats, err := f.svc.RoomStats(ctx, loner.ID, ls.room.ID)
	if err != nil {
		t.Fatalf("loner stats: %v", err)
	}
	if lonerStats.Team != nil || lonerStats.Personal.History == nil {
		t.Fatalf("loner: want no team and empty history got=%+v", lonerStats)
	}
}
