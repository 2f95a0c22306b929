// Package memory implements the repository interfaces over process memory.
// It backs service and API tests and local experiments without PostgreSQL.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

type statKey struct {
	user uuid.UUID
	room uuid.UUID
	date dates.Date
}

type boardKey struct {
	room uuid.UUID
	date dates.Date
}

type membership struct {
	roomID   uuid.UUID
	userID   uuid.UUID
	joinedAt time.Time
}

type state struct {
	users        []models.User
	rooms        []models.Room
	roomMembers  []membership
	checkins     map[statKey]bool
	plans        map[uuid.UUID]models.Plan
	overrides    []models.PlanOverride
	dailyStats   map[statKey]models.DailyStat
	teams        []models.Team
	teamMembers  []models.TeamMember
	scores       []models.TeamScore
	streaks      []models.TeamStreak
	leaderboards map[boardKey]models.LeaderboardSnapshot
}

func (s *state) clone() *state {
	c := &state{
		users:        append([]models.User(nil), s.users...),
		rooms:        append([]models.Room(nil), s.rooms...),
		roomMembers:  append([]membership(nil), s.roomMembers...),
		checkins:     make(map[statKey]bool, len(s.checkins)),
		plans:        make(map[uuid.UUID]models.Plan, len(s.plans)),
		overrides:    append([]models.PlanOverride(nil), s.overrides...),
		dailyStats:   make(map[statKey]models.DailyStat, len(s.dailyStats)),
		teams:        append([]models.Team(nil), s.teams...),
		teamMembers:  append([]models.TeamMember(nil), s.teamMembers...),
		scores:       append([]models.TeamScore(nil), s.scores...),
		streaks:      append([]models.TeamStreak(nil), s.streaks...),
		leaderboards: make(map[boardKey]models.LeaderboardSnapshot, len(s.leaderboards)),
	}
	for k, v := range s.checkins {
		c.checkins[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.dailyStats {
		c.dailyStats[k] = v
	}
	for k, v := range s.leaderboards {
		c.leaderboards[k] = v
	}
	return c
}

// Store holds all in-memory tables behind one mutex.
type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	data  *state
	clock func() time.Time

	// CheckinErr, when set, is consulted before every check-in lookup and
	// lets tests inject per-user failures.
	CheckinErr func(userID uuid.UUID) error
	// UpsertErr, when set, is consulted before every leaderboard upsert.
	UpsertErr func(roomID uuid.UUID) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			checkins:     make(map[statKey]bool),
			plans:        make(map[uuid.UUID]models.Plan),
			dailyStats:   make(map[statKey]models.DailyStat),
			leaderboards: make(map[boardKey]models.LeaderboardSnapshot),
		},
		clock: time.Now,
	}
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Repositories returns repository views over the store.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:        userRepo{s},
		Rooms:        roomRepo{s},
		Checkins:     checkinRepo{s},
		Plans:        planRepo{s},
		Overrides:    overrideRepo{s},
		DailyStats:   dailyStatRepo{s},
		Teams:        teamRepo{s},
		TeamScores:   teamScoreRepo{s},
		TeamStreaks:  teamStreakRepo{s},
		Leaderboards: leaderboardRepo{s},
	}
}

// InTx runs fn and restores the previous contents when it fails.
// Transactions are serialized.
func (s *Store) InTx(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.data.clone()
	s.mu.Unlock()

	if err := fn(s.Repositories()); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

// AddUser seeds a user.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.data.users = append(s.data.users, u)
	return u
}

// AddRoom seeds a room.
func (s *Store) AddRoom(r models.Room) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.data.rooms = append(s.data.rooms, r)
	return r
}

// AddRoomMember seeds a room membership.
func (s *Store) AddRoomMember(roomID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.roomMembers = append(s.data.roomMembers, membership{roomID: roomID, userID: userID, joinedAt: s.now()})
}

// AddTeam seeds a team.
func (s *Store) AddTeam(t models.Team) models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.data.teams = append(s.data.teams, t)
	return t
}

// AddTeamMember seeds a team membership. The user must already exist.
func (s *Store) AddTeamMember(teamID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.TeamMember{TeamID: teamID, UserID: userID}
	for _, u := range s.data.users {
		if u.ID == userID {
			m.Username = u.Username
			m.DisplayName = u.DisplayName
		}
	}
	joined := s.now()
	m.JoinedAt = &joined
	s.data.teamMembers = append(s.data.teamMembers, m)
}

// AddCheckin seeds a check-in.
func (s *Store) AddCheckin(userID, roomID uuid.UUID, forDate dates.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.checkins[statKey{user: userID, room: roomID, date: forDate}] = true
}

// AddTeamScore seeds a score row directly.
func (s *Store) AddTeamScore(score models.TeamScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score.ID == uuid.Nil {
		score.ID = uuid.New()
	}
	s.data.scores = append(s.data.scores, score)
}

// AddTeamStreak seeds a streak row directly.
func (s *Store) AddTeamStreak(streak models.TeamStreak) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if streak.ID == uuid.Nil {
		streak.ID = uuid.New()
	}
	s.data.streaks = append(s.data.streaks, streak)
}

// DailyStats returns every stored daily stat, for assertions.
func (s *Store) DailyStats() []models.DailyStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DailyStat, 0, len(s.data.dailyStats))
	for _, v := range s.data.dailyStats {
		out = append(out, v)
	}
	return out
}

// Overrides returns every stored override, for assertions.
func (s *Store) Overrides() []models.PlanOverride {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PlanOverride(nil), s.data.overrides...)
}

// TeamScores returns every stored team score, for assertions.
func (s *Store) TeamScores() []models.TeamScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TeamScore(nil), s.data.scores...)
}
