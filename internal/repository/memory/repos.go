package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r userRepo) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.User
	for i := offset; i < len(r.s.data.users) && len(out) < limit; i++ {
		u := r.s.data.users[i]
		out = append(out, &u)
	}
	return out, nil
}

type roomRepo struct{ s *Store }

func (r roomRepo) find(match func(models.Room) bool) *models.Room {
	for _, room := range r.s.data.rooms {
		if match(room) {
			room := room
			return &room
		}
	}
	return nil
}

func (r roomRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(room models.Room) bool { return room.ID == id }), nil
}

func (r roomRepo) GetByChatID(_ context.Context, chatID int64) (*models.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(func(room models.Room) bool {
		return room.TelegramChatID != nil && *room.TelegramChatID == chatID
	}), nil
}

func (r roomRepo) List(_ context.Context, limit, offset int) ([]*models.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Room
	for i := offset; i < len(r.s.data.rooms) && len(out) < limit; i++ {
		room := r.s.data.rooms[i]
		out = append(out, &room)
	}
	return out, nil
}

func (r roomRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*models.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Room
	for _, m := range r.s.data.roomMembers {
		if m.userID != userID {
			continue
		}
		if room := r.find(func(room models.Room) bool { return room.ID == m.roomID }); room != nil {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r roomRepo) IsMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.data.roomMembers {
		if m.roomID == roomID && m.userID == userID {
			return true, nil
		}
	}
	return false, nil
}

type checkinRepo struct{ s *Store }

func (r checkinRepo) Exists(_ context.Context, userID, roomID uuid.UUID, forDate dates.Date) (bool, error) {
	if r.s.CheckinErr != nil {
		if err := r.s.CheckinErr(userID); err != nil {
			return false, err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.data.checkins[statKey{user: userID, room: roomID, date: forDate}], nil
}

type planRepo struct{ s *Store }

func (r planRepo) Create(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	now := r.s.now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	stored := *plan
	stored.Overrides = nil
	r.s.data.plans[plan.ID] = stored
	return plan, nil
}

func (r planRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r planRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Plan
	for _, p := range r.s.data.plans {
		if p.UserID == userID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r planRepo) Update(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.plans[plan.ID]; !ok {
		return nil, fmt.Errorf("plan %s not found", plan.ID)
	}
	plan.UpdatedAt = r.s.now()
	stored := *plan
	stored.Overrides = nil
	r.s.data.plans[plan.ID] = stored
	return plan, nil
}

func (r planRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.plans[id]; !ok {
		return fmt.Errorf("plan %s not found", id)
	}
	delete(r.s.data.plans, id)
	return nil
}

type overrideRepo struct{ s *Store }

func (r overrideRepo) Create(_ context.Context, o *models.PlanOverride) (*models.PlanOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.plans[o.PlanID]; !ok {
		return nil, fmt.Errorf("failed to create plan override: plan %s does not exist", o.PlanID)
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := r.s.now()
	o.CreatedAt = &now
	r.s.data.overrides = append(r.s.data.overrides, *o)
	return o, nil
}

func (r overrideRepo) ListByPlans(_ context.Context, planIDs []uuid.UUID) ([]*models.PlanOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(planIDs))
	for _, id := range planIDs {
		want[id] = true
	}
	var out []*models.PlanOverride
	for _, o := range r.s.data.overrides {
		if want[o.PlanID] {
			o := o
			out = append(out, &o)
		}
	}
	return out, nil
}

type dailyStatRepo struct{ s *Store }

func (r dailyStatRepo) Upsert(_ context.Context, stat *models.DailyStat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := statKey{user: stat.UserID, room: stat.RoomID, date: stat.StatDate}
	if existing, ok := r.s.data.dailyStats[key]; ok {
		existing.DidCheckin = stat.DidCheckin
		r.s.data.dailyStats[key] = existing
		return nil
	}
	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = r.s.now()
	}
	r.s.data.dailyStats[key] = *stat
	return nil
}

func (r dailyStatRepo) ListByUserRoom(_ context.Context, userID, roomID uuid.UUID) ([]models.DailyStat, error) {
	return r.filter(func(s models.DailyStat) bool { return s.UserID == userID && s.RoomID == roomID }), nil
}

func (r dailyStatRepo) ListByRoomDate(_ context.Context, roomID uuid.UUID, statDate dates.Date) ([]models.DailyStat, error) {
	return r.filter(func(s models.DailyStat) bool { return s.RoomID == roomID && s.StatDate.Equal(statDate) }), nil
}

func (r dailyStatRepo) filter(match func(models.DailyStat) bool) []models.DailyStat {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.DailyStat
	for _, s := range r.s.data.dailyStats {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatDate.Before(out[j].StatDate) })
	return out
}

type teamRepo struct{ s *Store }

func (r teamRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Team
	for _, t := range r.s.data.teams {
		if t.RoomID == roomID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r teamRepo) GetForUserInRoom(_ context.Context, userID, roomID uuid.UUID) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.data.teamMembers {
		if m.UserID != userID {
			continue
		}
		for _, t := range r.s.data.teams {
			if t.ID == m.TeamID && t.RoomID == roomID {
				t := t
				return &t, nil
			}
		}
	}
	return nil, nil
}

func (r teamRepo) ListMembers(_ context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TeamMember
	for _, m := range r.s.data.teamMembers {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r teamRepo) CountMembers(_ context.Context, teamIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[uuid.UUID]int, len(teamIDs))
	want := make(map[uuid.UUID]bool, len(teamIDs))
	for _, id := range teamIDs {
		want[id] = true
	}
	for _, m := range r.s.data.teamMembers {
		if want[m.TeamID] {
			counts[m.TeamID]++
		}
	}
	return counts, nil
}

type teamScoreRepo struct{ s *Store }

func (r teamScoreRepo) Create(_ context.Context, score *models.TeamScore) (*models.TeamScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	score.CreatedAt = r.s.now()
	r.s.data.scores = append(r.s.data.scores, *score)
	return score, nil
}

func (r teamScoreRepo) ListByRoom(_ context.Context, roomID uuid.UUID, upTo *dates.Date) ([]models.TeamScore, error) {
	return r.filter(func(s models.TeamScore) bool {
		return s.RoomID == roomID && (upTo == nil || !s.ScoreDate.After(*upTo))
	}), nil
}

func (r teamScoreRepo) ListByTeam(_ context.Context, teamID uuid.UUID) ([]models.TeamScore, error) {
	return r.filter(func(s models.TeamScore) bool { return s.TeamID == teamID }), nil
}

func (r teamScoreRepo) Exists(_ context.Context, teamID uuid.UUID, scoreDate dates.Date, reason string) (bool, error) {
	found := r.filter(func(s models.TeamScore) bool {
		return s.TeamID == teamID && s.ScoreDate.Equal(scoreDate) && s.Reason == reason
	})
	return len(found) > 0, nil
}

func (r teamScoreRepo) filter(match func(models.TeamScore) bool) []models.TeamScore {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TeamScore
	for _, s := range r.s.data.scores {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScoreDate.Before(out[j].ScoreDate) })
	return out
}

type teamStreakRepo struct{ s *Store }

func (r teamStreakRepo) ListByTeam(_ context.Context, teamID uuid.UUID) ([]models.TeamStreak, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TeamStreak
	for _, s := range r.s.data.streaks {
		if s.TeamID == teamID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r teamStreakRepo) Create(_ context.Context, streak *models.TeamStreak) (*models.TeamStreak, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if streak.ID == uuid.Nil {
		streak.ID = uuid.New()
	}
	r.s.data.streaks = append(r.s.data.streaks, *streak)
	return streak, nil
}

func (r teamStreakRepo) Update(_ context.Context, streak *models.TeamStreak) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, s := range r.s.data.streaks {
		if s.ID == streak.ID {
			r.s.data.streaks[i] = *streak
			return nil
		}
	}
	return fmt.Errorf("team streak %s not found", streak.ID)
}

type leaderboardRepo struct{ s *Store }

func (r leaderboardRepo) Upsert(_ context.Context, snap *models.LeaderboardSnapshot) (*models.LeaderboardSnapshot, error) {
	if r.s.UpsertErr != nil {
		if err := r.s.UpsertErr(snap.RoomID); err != nil {
			return nil, err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	snap.CreatedAt = &now
	stored := *snap
	stored.Ranking = append([]models.RankingEntry(nil), snap.Ranking...)
	r.s.data.leaderboards[boardKey{room: snap.RoomID, date: snap.SnapshotDate}] = stored
	return snap, nil
}

func (r leaderboardRepo) Get(_ context.Context, roomID uuid.UUID, snapshotDate dates.Date) (*models.LeaderboardSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	snap, ok := r.s.data.leaderboards[boardKey{room: roomID, date: snapshotDate}]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

var _ repository.Transactor = (*Store)(nil)
