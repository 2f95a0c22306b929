package scoring

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

// TeamHistoryLimit caps the score events shown in a team summary.
const TeamHistoryLimit = 12

// Points awarded by the team scoring job.
const (
	AllCheckedInPoints = 10
	StreakBonusPoints  = 5
	// StreakBonusEvery is the streak length multiple that earns a bonus.
	StreakBonusEvery = 3
)

// ReasonTotal is the aggregate of one scoring reason.
type ReasonTotal struct {
	Reason      string `json:"reason"`
	TotalPoints int    `json:"totalPoints"`
	Occurrences int    `json:"occurrences"`
}

// StreakView is the exposed shape of a stored streak.
type StreakView struct {
	Length    int        `json:"length"`
	StartDate dates.Date `json:"startDate"`
	EndDate   dates.Date `json:"endDate"`
}

// ScoreEvent is one entry of a team's score history.
type ScoreEvent struct {
	Date   dates.Date `json:"date"`
	Points int        `json:"points"`
	Reason string     `json:"reason"`
}

// ReasonBreakdown groups scores by reason. The result is ordered by points
// descending, then occurrences descending, then reason by name.
func ReasonBreakdown(scores []models.TeamScore) []ReasonTotal {
	index := make(map[string]int)
	out := make([]ReasonTotal, 0)
	for _, s := range scores {
		i, ok := index[s.Reason]
		if !ok {
			i = len(out)
			index[s.Reason] = i
			out = append(out, ReasonTotal{Reason: s.Reason})
		}
		out[i].TotalPoints += s.Points
		out[i].Occurrences++
	}

	col := NameCollator()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		return col.CompareString(a.Reason, b.Reason) < 0
	})
	return out
}

// PickCurrentStreak returns the stored streak with the latest end date; the
// first one wins on ties. It does not check that the streak reaches today.
func PickCurrentStreak(streaks []models.TeamStreak) *models.TeamStreak {
	if len(streaks) == 0 {
		return nil
	}
	best := streaks[0]
	for _, s := range streaks[1:] {
		if s.EndDate.After(best.EndDate) {
			best = s
		}
	}
	return &best
}

// PickLongestStreak returns the streak with the greatest length, preferring
// the later end date on ties.
func PickLongestStreak(streaks []models.TeamStreak) *models.TeamStreak {
	if len(streaks) == 0 {
		return nil
	}
	best := streaks[0]
	for _, s := range streaks[1:] {
		if s.Length > best.Length || (s.Length == best.Length && s.EndDate.After(best.EndDate)) {
			best = s
		}
	}
	return &best
}

// ViewStreak converts a stored streak for output; nil stays nil.
func ViewStreak(s *models.TeamStreak) *StreakView {
	if s == nil {
		return nil
	}
	return &StreakView{Length: s.Length, StartDate: s.StartDate, EndDate: s.EndDate}
}

// TeamHistory returns the TeamHistoryLimit most recent score events, newest
// first.
func TeamHistory(scores []models.TeamScore) []ScoreEvent {
	sorted := make([]models.TeamScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScoreDate.After(sorted[j].ScoreDate)
	})
	if len(sorted) > TeamHistoryLimit {
		sorted = sorted[:TeamHistoryLimit]
	}

	out := make([]ScoreEvent, 0, len(sorted))
	for _, s := range sorted {
		out = append(out, ScoreEvent{Date: s.ScoreDate, Points: s.Points, Reason: s.Reason})
	}
	return out
}

// TotalPoints sums every score.
func TotalPoints(scores []models.TeamScore) int {
	total := 0
	for _, s := range scores {
		total += s.Points
	}
	return total
}

// NextStreak decides how a team's streaks change when it qualifies on date.
// It returns the streak to persist and whether it is a new row. When latest
// already covers date, the returned streak is nil.
func NextStreak(latest *models.TeamStreak, teamID uuid.UUID, date dates.Date) (*models.TeamStreak, bool) {
	if latest != nil {
		if !latest.EndDate.Before(date) {
			return nil, false
		}
		if latest.EndDate.AddDays(1).Equal(date) {
			extended := *latest
			extended.EndDate = date
			extended.Length++
			return &extended, false
		}
	}
	return &models.TeamStreak{
		TeamID:    teamID,
		StartDate: date,
		EndDate:   date,
		Length:    1,
	}, true
}
