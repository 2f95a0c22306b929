package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/models"
)

// userPageSize is the batch size used when walking all users or rooms.
const userPageSize = 100

// Settlement window: a user's day is settled from 23:59 local.
const (
	settleHour   = 23
	settleMinute = 59
)

// SettleRequest parameterizes a settlement run.
type SettleRequest struct {
	// Date settles everyone for that date; when empty each user is settled
	// for their local today once their clock reaches 23:59.
	Date string `json:"date,omitempty"`
	// TZ replaces every user's profile timezone for this run.
	TZ     string `json:"tz,omitempty"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// SettleReport summarizes a settlement run.
type SettleReport struct {
	DryRun    bool               `json:"dryRun"`
	Processed int                `json:"processed"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Written   int                `json:"written"`
	Stats     []models.DailyStat `json:"stats,omitempty"`
}

// SettlementWindowReached reports whether now, seen in loc, is at or past
// 23:59.
func SettlementWindowReached(now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	return local.Hour() >= settleHour && local.Minute() >= settleMinute
}

// SettleDailyStats writes one DailyStat per user per room. Failures for a
// single user are logged, counted and returned together once every user
// has been visited.
func (s *Service) SettleDailyStats(ctx context.Context, req SettleRequest) (report *SettleReport, err error) {
	defer s.metrics.ObserveJob("settle", time.Now(), &err)

	var explicit *dates.Date
	if strings.TrimSpace(req.Date) != "" {
		d, perr := parseDateField("date", strings.TrimSpace(req.Date))
		if perr != nil {
			return nil, perr
		}
		explicit = &d
	}
	var override *time.Location
	if tz := strings.TrimSpace(req.TZ); tz != "" {
		loc, lerr := time.LoadLocation(tz)
		if lerr != nil {
			return nil, invalid("tz", "unknown timezone %q", tz)
		}
		override = loc
	}

	now := s.now()
	report = &SettleReport{DryRun: req.DryRun}
	var unitErrs *multierror.Error

	for offset := 0; ; offset += userPageSize {
		users, lerr := s.repos.Users.List(ctx, userPageSize, offset)
		if lerr != nil {
			return report, fmt.Errorf("failed to list users: %w", lerr)
		}

		for _, user := range users {
			loc := override
			if loc == nil {
				loc = user.Location()
			}

			statDate := dates.InZone(now, loc)
			if explicit != nil {
				statDate = *explicit
			} else if !SettlementWindowReached(now, loc) {
				report.Skipped++
				continue
			}

			stats, uerr := s.settleUser(ctx, user, statDate, req.DryRun)
			if uerr != nil {
				report.Failed++
				s.metrics.JobUnitFailures.WithLabelValues("settle").Inc()
				s.logger.WithFields(logrus.Fields{
					"user_id":   user.ID,
					"stat_date": statDate,
				}).WithError(uerr).Error("Failed to settle user")
				unitErrs = multierror.Append(unitErrs, fmt.Errorf("user %s: %w", user.ID, uerr))
				continue
			}

			report.Processed++
			if req.DryRun {
				report.Stats = append(report.Stats, stats...)
			} else {
				report.Written += len(stats)
			}
		}

		if len(users) < userPageSize {
			break
		}
	}

	s.metrics.DailyStatsWritten.Add(float64(report.Written))
	s.logger.WithFields(logrus.Fields{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"written":   report.Written,
		"dry_run":   report.DryRun,
	}).Info("Daily settlement finished")

	return report, unitErrs.ErrorOrNil()
}

func (s *Service) settleUser(ctx context.Context, user *models.User, statDate dates.Date, dryRun bool) ([]models.DailyStat, error) {
	rooms, err := s.repos.Rooms.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	stats := make([]models.DailyStat, 0, len(rooms))
	for _, room := range rooms {
		checked, err := s.repos.Checkins.Exists(ctx, user.ID, room.ID, statDate)
		if err != nil {
			return nil, fmt.Errorf("failed to check checkin in room %s: %w", room.ID, err)
		}
		stats = append(stats, models.DailyStat{
			UserID:     user.ID,
			RoomID:     room.ID,
			StatDate:   statDate,
			DidCheckin: checked,
		})
	}

	if dryRun {
		return stats, nil
	}
	for i := range stats {
		if err := s.repos.DailyStats.Upsert(ctx, &stats[i]); err != nil {
			return nil, fmt.Errorf("failed to upsert daily stat: %w", err)
		}
	}
	return stats, nil
}
