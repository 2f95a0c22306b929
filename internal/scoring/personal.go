package scoring

import (
	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

const (
	// PersonalHistoryLimit caps the history rows in a personal summary.
	PersonalHistoryLimit = 30
	// RecentWindowRows is the number of trailing rows behind RecentCompletionRate.
	RecentWindowRows = 7
)

// HistoryEntry is one settled day in a personal summary.
type HistoryEntry struct {
	Date       dates.Date `json:"date"`
	DidCheckin bool       `json:"didCheckin"`
}

// PersonalStats summarizes one user's settled days in a room.
type PersonalStats struct {
	TotalDays            int            `json:"totalDays"`
	CompletedDays        int            `json:"completedDays"`
	MissedDays           int            `json:"missedDays"`
	CompletionRate       float64        `json:"completionRate"`
	RecentCompletionRate float64        `json:"recentCompletionRate"`
	CurrentStreak        int            `json:"currentStreak"`
	LongestStreak        int            `json:"longestStreak"`
	LastCheckinDate      *dates.Date    `json:"lastCheckinDate"`
	FirstTrackedDate     *dates.Date    `json:"firstTrackedDate"`
	History              []HistoryEntry `json:"history"`
}

// BuildPersonalStats walks rows, which must be ordered by stat date
// ascending. A streak only continues across two checked-in rows exactly one
// day apart; a missing row breaks it just like a missed day.
func BuildPersonalStats(rows []models.DailyStat) PersonalStats {
	stats := PersonalStats{History: []HistoryEntry{}}
	if len(rows) == 0 {
		return stats
	}

	first := rows[0].StatDate
	stats.FirstTrackedDate = &first

	run := 0
	for i, row := range rows {
		if row.DidCheckin {
			stats.CompletedDays++
			d := row.StatDate
			stats.LastCheckinDate = &d
			if i > 0 && rows[i-1].DidCheckin && rows[i-1].StatDate.DaysUntil(row.StatDate) == 1 {
				run++
			} else {
				run = 1
			}
		} else {
			run = 0
		}
		if run > stats.LongestStreak {
			stats.LongestStreak = run
		}
	}

	stats.TotalDays = len(rows)
	stats.MissedDays = stats.TotalDays - stats.CompletedDays
	stats.CompletionRate = float64(stats.CompletedDays) / float64(stats.TotalDays)
	if rows[len(rows)-1].DidCheckin {
		stats.CurrentStreak = run
	}

	recent := tail(rows, RecentWindowRows)
	done := 0
	for _, row := range recent {
		if row.DidCheckin {
			done++
		}
	}
	stats.RecentCompletionRate = float64(done) / float64(len(recent))

	for _, row := range tail(rows, PersonalHistoryLimit) {
		stats.History = append(stats.History, HistoryEntry{Date: row.StatDate, DidCheckin: row.DidCheckin})
	}
	return stats
}

func tail(rows []models.DailyStat, n int) []models.DailyStat {
	if len(rows) <= n {
		return rows
	}
	return rows[len(rows)-n:]
}
