package scoring

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

// RecentDays is the width of the trailing points window, including the
// as-of date itself.
const RecentDays = 7

// BuildRanking ranks teams by their scores as of asOf. Scores dated after
// asOf are ignored. The order is total points descending, then trailing
// seven-day points descending, then team name by collation.
func BuildRanking(teams []models.Team, memberCounts map[uuid.UUID]int, scores []models.TeamScore, asOf dates.Date) []models.RankingEntry {
	entries := make([]models.RankingEntry, 0, len(teams))
	index := make(map[uuid.UUID]int, len(teams))
	for _, team := range teams {
		index[team.ID] = len(entries)
		entries = append(entries, models.RankingEntry{
			TeamID:      team.ID,
			TeamName:    team.Name,
			MemberCount: memberCounts[team.ID],
		})
	}

	recentFrom := asOf.AddDays(-(RecentDays - 1))
	for _, s := range scores {
		i, ok := index[s.TeamID]
		if !ok || s.ScoreDate.After(asOf) {
			continue
		}
		e := &entries[i]
		e.TotalPoints += s.Points
		if !s.ScoreDate.Before(recentFrom) {
			e.PointsLast7Days += s.Points
		}
		if e.LastScoreDate == nil || s.ScoreDate.After(*e.LastScoreDate) {
			d := s.ScoreDate
			e.LastScoreDate = &d
		}
	}

	SortRanking(entries)
	return entries
}

// SortRanking orders entries in place with the leaderboard tie-breaks.
func SortRanking(entries []models.RankingEntry) {
	col := NameCollator()
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.PointsLast7Days != b.PointsLast7Days {
			return a.PointsLast7Days > b.PointsLast7Days
		}
		return col.CompareString(a.TeamName, b.TeamName) < 0
	})
}
