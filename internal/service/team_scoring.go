package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
	"github.com/Kerhoff/fitrooms/internal/repository"
	"github.com/Kerhoff/fitrooms/internal/scoring"
)

// scoreLookbackDays is how many days before the default score date a run
// without an explicit date revisits. Users west of the reference zone settle
// their day after the reference zone has already moved on.
const scoreLookbackDays = 1

// ScoreRequest parameterizes a team scoring run.
type ScoreRequest struct {
	// Date scores that single date. When empty, yesterday in the reference
	// zone and the scoreLookbackDays before it are scored, oldest first.
	Date   string `json:"date,omitempty"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// TeamAward is the outcome for one qualifying team.
type TeamAward struct {
	TeamID       uuid.UUID  `json:"teamId"`
	RoomID       uuid.UUID  `json:"roomId"`
	ScoreDate    dates.Date `json:"scoreDate"`
	Points       int        `json:"points"`
	StreakLength int        `json:"streakLength"`
	Bonus        bool       `json:"bonus"`
}

// ScoreReport summarizes a team scoring run.
type ScoreReport struct {
	DryRun bool `json:"dryRun"`
	// ScoreDate is the latest date scored; ScoreDates lists every one.
	ScoreDate     dates.Date   `json:"scoreDate"`
	ScoreDates    []dates.Date `json:"scoreDates"`
	TeamsChecked  int         `json:"teamsChecked"`
	Qualified     int         `json:"qualified"`
	AlreadyScored int         `json:"alreadyScored"`
	Failed        int         `json:"failed"`
	Awards        []TeamAward `json:"awards,omitempty"`
}

// ScoreTeams awards points to every team whose members all checked in on the
// scoring date. A date that was already scored for a team is left untouched.
func (s *Service) ScoreTeams(ctx context.Context, req ScoreRequest) (report *ScoreReport, err error) {
	defer s.metrics.ObserveJob("score", time.Now(), &err)

	scoreDate := DefaultSnapshotDate(s.now(), s.referenceZone)
	scoreDates := make([]dates.Date, 0, scoreLookbackDays+1)
	if d := strings.TrimSpace(req.Date); d != "" {
		parsed, perr := parseDateField("date", d)
		if perr != nil {
			return nil, perr
		}
		scoreDate = parsed
		scoreDates = append(scoreDates, scoreDate)
	} else {
		for back := scoreLookbackDays; back >= 0; back-- {
			scoreDates = append(scoreDates, scoreDate.AddDays(-back))
		}
	}

	report = &ScoreReport{DryRun: req.DryRun, ScoreDate: scoreDate, ScoreDates: scoreDates}
	var unitErrs *multierror.Error

	for _, day := range scoreDates {
		unitErrs = multierror.Append(unitErrs, s.scoreDate(ctx, day, report))
	}

	s.logger.WithFields(logrus.Fields{
		"score_dates":    scoreDates,
		"teams":          report.TeamsChecked,
		"qualified":      report.Qualified,
		"already_scored": report.AlreadyScored,
		"failed":         report.Failed,
		"dry_run":        report.DryRun,
	}).Info("Team scoring finished")

	return report, unitErrs.ErrorOrNil()
}

// scoreDate scores every room for one date. Room failures are counted and
// returned together.
func (s *Service) scoreDate(ctx context.Context, scoreDate dates.Date, report *ScoreReport) error {
	var unitErrs *multierror.Error

	for offset := 0; ; offset += userPageSize {
		rooms, lerr := s.repos.Rooms.List(ctx, userPageSize, offset)
		if lerr != nil {
			return multierror.Append(unitErrs, fmt.Errorf("failed to list rooms: %w", lerr))
		}

		for _, room := range rooms {
			if rerr := s.scoreRoom(ctx, room.ID, scoreDate, report); rerr != nil {
				report.Failed++
				s.metrics.JobUnitFailures.WithLabelValues("score").Inc()
				s.logger.WithFields(logrus.Fields{
					"room_id":    room.ID,
					"score_date": scoreDate,
				}).WithError(rerr).Error("Failed to score room")
				unitErrs = multierror.Append(unitErrs, fmt.Errorf("room %s on %s: %w", room.ID, scoreDate, rerr))
			}
		}

		if len(rooms) < userPageSize {
			break
		}
	}
	return unitErrs.ErrorOrNil()
}

func (s *Service) scoreRoom(ctx context.Context, roomID uuid.UUID, scoreDate dates.Date, report *ScoreReport) error {
	teams, err := s.repos.Teams.ListByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}
	if len(teams) == 0 {
		return nil
	}

	stats, err := s.repos.DailyStats.ListByRoomDate(ctx, roomID, scoreDate)
	if err != nil {
		return fmt.Errorf("failed to list daily stats: %w", err)
	}
	checkedIn := make(map[uuid.UUID]bool, len(stats))
	for _, st := range stats {
		checkedIn[st.UserID] = st.DidCheckin
	}

	for _, team := range teams {
		report.TeamsChecked++

		members, err := s.repos.Teams.ListMembers(ctx, team.ID)
		if err != nil {
			return fmt.Errorf("failed to list members of team %s: %w", team.ID, err)
		}
		if !allCheckedIn(members, checkedIn) {
			continue
		}
		report.Qualified++

		scored, err := s.repos.TeamScores.Exists(ctx, team.ID, scoreDate, models.ScoreReasonAllCheckedIn)
		if err != nil {
			return fmt.Errorf("failed to check team score: %w", err)
		}
		if scored {
			report.AlreadyScored++
			continue
		}

		var award *TeamAward
		if report.DryRun {
			award, err = s.awardTeam(ctx, s.repos, team, scoreDate, false)
		} else {
			err = s.tx.InTx(ctx, func(repos *repository.Repositories) error {
				var txErr error
				award, txErr = s.awardTeam(ctx, repos, team, scoreDate, true)
				return txErr
			})
		}
		if err != nil {
			return fmt.Errorf("failed to score team %s: %w", team.ID, err)
		}
		report.Awards = append(report.Awards, *award)
	}
	return nil
}

func allCheckedIn(members []models.TeamMember, checkedIn map[uuid.UUID]bool) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !checkedIn[m.UserID] {
			return false
		}
	}
	return true
}

// awardTeam writes the daily score, advances the streak and adds a bonus on
// every third consecutive day. With write false it only computes the award.
func (s *Service) awardTeam(ctx context.Context, repos *repository.Repositories, team models.Team, scoreDate dates.Date, write bool) (*TeamAward, error) {
	award := &TeamAward{TeamID: team.ID, RoomID: team.RoomID, ScoreDate: scoreDate, Points: scoring.AllCheckedInPoints}

	streaks, err := repos.TeamStreaks.ListByTeam(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	latest := scoring.PickCurrentStreak(streaks)
	next, created := scoring.NextStreak(latest, team.ID, scoreDate)
	switch {
	case next != nil:
		award.StreakLength = next.Length
	case latest != nil:
		award.StreakLength = latest.Length
	}
	award.Bonus = next != nil && next.Length%scoring.StreakBonusEvery == 0
	if award.Bonus {
		award.Points += scoring.StreakBonusPoints
	}

	if !write {
		return award, nil
	}

	if _, err := repos.TeamScores.Create(ctx, &models.TeamScore{
		TeamID:    team.ID,
		RoomID:    team.RoomID,
		ScoreDate: scoreDate,
		Points:    scoring.AllCheckedInPoints,
		Reason:    models.ScoreReasonAllCheckedIn,
	}); err != nil {
		return nil, fmt.Errorf("failed to create score: %w", err)
	}

	if next != nil {
		if created {
			if _, err := repos.TeamStreaks.Create(ctx, next); err != nil {
				return nil, fmt.Errorf("failed to create streak: %w", err)
			}
		} else if err := repos.TeamStreaks.Update(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to update streak: %w", err)
		}
	}

	if award.Bonus {
		if _, err := repos.TeamScores.Create(ctx, &models.TeamScore{
			TeamID:    team.ID,
			RoomID:    team.RoomID,
			ScoreDate: scoreDate,
			Points:    scoring.StreakBonusPoints,
			Reason:    models.ScoreReasonStreakBonus,
		}); err != nil {
			return nil, fmt.Errorf("failed to create streak bonus: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"team_id":    team.ID,
		"room_id":    team.RoomID,
		"score_date": scoreDate,
		"points":     award.Points,
		"streak":     award.StreakLength,
	}).Info("Team scored")
	return award, nil
}
