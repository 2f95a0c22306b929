package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/scoring"
)

// ScoreboardEntry is a live ranking line seen by one user.
type ScoreboardEntry struct {
	models.RankingEntry
	IsUserTeam bool `json:"isUserTeam"`
}

// TeamSummary aggregates a team's score log and streaks.
type TeamSummary struct {
	TeamID          uuid.UUID             `json:"teamId"`
	TeamName        string                `json:"teamName"`
	Members         []models.TeamMember   `json:"members"`
	TotalPoints     int                   `json:"totalPoints"`
	PointsLast7Days int                   `json:"pointsLast7Days"`
	ReasonBreakdown []scoring.ReasonTotal `json:"reasonBreakdown"`
	CurrentStreak   *scoring.StreakView   `json:"currentStreak"`
	LongestStreak   *scoring.StreakView   `json:"longestStreak"`
	History         []scoring.ScoreEvent  `json:"history"`
}

// RoomStats is the stats bundle a room member sees.
type RoomStats struct {
	Room       *models.Room          `json:"room"`
	Personal   scoring.PersonalStats `json:"personal"`
	Team       *TeamSummary          `json:"team"`
	Scoreboard []ScoreboardEntry     `json:"scoreboard"`
}

// RoomStats builds the caller's personal summary, their team summary and the
// room's live scoreboard. Only room members may read it.
func (s *Service) RoomStats(ctx context.Context, userID, roomID uuid.UUID) (*RoomStats, error) {
	member, err := s.repos.Rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check room membership: %w", err)
	}
	if !member {
		return nil, ErrNotRoomMember
	}

	room, err := s.repos.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	rows, err := s.repos.DailyStats.ListByUserRoom(ctx, userID, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}

	scoreboard, err := s.scoreboard(ctx, roomID)
	if err != nil {
		return nil, err
	}

	result := &RoomStats{
		Room:       room,
		Personal:   scoring.BuildPersonalStats(rows),
		Scoreboard: scoreboard,
	}

	team, err := s.repos.Teams.GetForUserInRoom(ctx, userID, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user team: %w", err)
	}
	if team == nil {
		return result, nil
	}

	for i := range result.Scoreboard {
		if result.Scoreboard[i].TeamID == team.ID {
			result.Scoreboard[i].IsUserTeam = true
		}
	}
	summary, err := s.teamSummary(ctx, team, result.Scoreboard)
	if err != nil {
		return nil, err
	}
	result.Team = summary
	return result, nil
}

func (s *Service) scoreboard(ctx context.Context, roomID uuid.UUID) ([]ScoreboardEntry, error) {
	ranking, err := s.rankRoom(ctx, roomID, s.Today())
	if err != nil {
		return nil, err
	}
	out := make([]ScoreboardEntry, 0, len(ranking))
	for _, e := range ranking {
		out = append(out, ScoreboardEntry{RankingEntry: e})
	}
	return out, nil
}

func (s *Service) teamSummary(ctx context.Context, team *models.Team, board []ScoreboardEntry) (*TeamSummary, error) {
	members, err := s.repos.Teams.ListMembers(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	scores, err := s.repos.TeamScores.ListByTeam(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team scores: %w", err)
	}
	streaks, err := s.repos.TeamStreaks.ListByTeam(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team streaks: %w", err)
	}
	if members == nil {
		members = []models.TeamMember{}
	}

	summary := &TeamSummary{
		TeamID:          team.ID,
		TeamName:        team.Name,
		Members:         members,
		TotalPoints:     scoring.TotalPoints(scores),
		ReasonBreakdown: scoring.ReasonBreakdown(scores),
		CurrentStreak:   scoring.ViewStreak(scoring.PickCurrentStreak(streaks)),
		LongestStreak:   scoring.ViewStreak(scoring.PickLongestStreak(streaks)),
		History:         scoring.TeamHistory(scores),
	}
	for _, e := range board {
		if e.TeamID == team.ID {
			summary.PointsLast7Days = e.PointsLast7Days
		}
	}
	return summary, nil
}
