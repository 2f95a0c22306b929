package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
)

// RankingEntry is one team's line in a leaderboard ranking. The JSON shape is
// persisted as-is in the snapshot's ranking column.
type RankingEntry struct {
	TeamID          uuid.UUID   `json:"team_id"`
	TeamName        string      `json:"team_name"`
	MemberCount     int         `json:"member_count"`
	TotalPoints     int         `json:"total_points"`
	PointsLast7Days int         `json:"points_last7_days"`
	LastScoreDate   *dates.Date `json:"last_score_date"`
}

// LeaderboardSnapshot is the immutable ranking of a room as of a date
type LeaderboardSnapshot struct {
	RoomID       uuid.UUID      `json:"room_id" db:"room_id"`
	SnapshotDate dates.Date     `json:"snapshot_date" db:"snapshot_date"`
	Ranking      []RankingEntry `json:"ranking" db:"ranking"`
	CreatedAt    *time.Time     `json:"created_at" db:"created_at"`
}

// Leader returns the top-ranked entry, if any
func (s *LeaderboardSnapshot) Leader() *RankingEntry {
	if len(s.Ranking) == 0 {
		return nil
	}
	return &s.Ranking[0]
}
