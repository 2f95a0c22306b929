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
	"github.com/Kerhoff/fitrooms/internal/scoring"
)

// DefaultedDateNote explains a snapshot read without an explicit date.
const DefaultedDateNote = "未提供 date，默认使用 UTC+8 前一自然日"

// DefaultSnapshotDate is the day before now's date in zone.
func DefaultSnapshotDate(now time.Time, zone *time.Location) dates.Date {
	return dates.InZone(now, zone).AddDays(-1)
}

// SnapshotRequest parameterizes a leaderboard batch run.
type SnapshotRequest struct {
	Date   string `json:"date,omitempty"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// RoomRanking is one room's ranking inside a batch report.
type RoomRanking struct {
	RoomID  uuid.UUID             `json:"roomId"`
	Ranking []models.RankingEntry `json:"ranking"`
}

// SnapshotReport summarizes a leaderboard batch run.
type SnapshotReport struct {
	DryRun         bool          `json:"dryRun"`
	SnapshotDate   dates.Date    `json:"snapshotDate"`
	RoomsProcessed int           `json:"roomsProcessed"`
	Upserted       int           `json:"upserted"`
	Refreshed      int           `json:"refreshed"`
	Failed         int           `json:"failed"`
	Rooms          []RoomRanking `json:"rooms,omitempty"`

	// Snapshots holds the rows written by this run.
	Snapshots []*models.LeaderboardSnapshot `json:"-"`
}

// LeaderboardMeta describes how the snapshot date of a read was chosen.
type LeaderboardMeta struct {
	UsedDate      dates.Date `json:"usedDate"`
	DefaultedDate bool       `json:"defaultedDate"`
	Note          string     `json:"note,omitempty"`
}

// LeaderboardView is a stored snapshot with its read metadata.
type LeaderboardView struct {
	Snapshot *models.LeaderboardSnapshot `json:"snapshot"`
	Meta     LeaderboardMeta             `json:"meta"`
}

// Announcer publishes a freshly built snapshot to a room's chat.
type Announcer interface {
	Announce(ctx context.Context, room *models.Room, snapshot *models.LeaderboardSnapshot) error
}

// rankRoom ranks every team of a room using scores dated on or before asOf.
func (s *Service) rankRoom(ctx context.Context, roomID uuid.UUID, asOf dates.Date) ([]models.RankingEntry, error) {
	teams, err := s.repos.Teams.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	if len(teams) == 0 {
		return []models.RankingEntry{}, nil
	}

	ids := make([]uuid.UUID, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	counts, err := s.repos.Teams.CountMembers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count team members: %w", err)
	}
	scores, err := s.repos.TeamScores.ListByRoom(ctx, roomID, &asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list team scores: %w", err)
	}
	return scoring.BuildRanking(teams, counts, scores, asOf), nil
}

// BuildLeaderboard ranks one room as of snapshotDate and upserts the result.
func (s *Service) BuildLeaderboard(ctx context.Context, roomID uuid.UUID, snapshotDate dates.Date) (*models.LeaderboardSnapshot, error) {
	ranking, err := s.rankRoom(ctx, roomID, snapshotDate)
	if err != nil {
		return nil, err
	}
	return s.saveSnapshot(ctx, roomID, snapshotDate, ranking)
}

func (s *Service) saveSnapshot(ctx context.Context, roomID uuid.UUID, snapshotDate dates.Date, ranking []models.RankingEntry) (*models.LeaderboardSnapshot, error) {
	saved, err := s.repos.Leaderboards.Upsert(ctx, &models.LeaderboardSnapshot{
		RoomID:       roomID,
		SnapshotDate: snapshotDate,
		Ranking:      ranking,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert leaderboard: %w", err)
	}
	s.metrics.SnapshotsWritten.Inc()
	return saved, nil
}

// BuildAllLeaderboards snapshots every room that has teams. A failing room
// is logged and reported without stopping the others. A run on the default
// date also rebuilds the previous day's existing snapshots, which may have
// gained scores from teams scored late.
func (s *Service) BuildAllLeaderboards(ctx context.Context, req SnapshotRequest) (report *SnapshotReport, err error) {
	defer s.metrics.ObserveJob("snapshot", time.Now(), &err)

	snapshotDate := DefaultSnapshotDate(s.now(), s.referenceZone)
	refresh := !req.DryRun
	if d := strings.TrimSpace(req.Date); d != "" {
		parsed, perr := parseDateField("date", d)
		if perr != nil {
			return nil, perr
		}
		snapshotDate = parsed
		refresh = false
	}

	report = &SnapshotReport{DryRun: req.DryRun, SnapshotDate: snapshotDate}
	var unitErrs *multierror.Error

	for offset := 0; ; offset += userPageSize {
		rooms, lerr := s.repos.Rooms.List(ctx, userPageSize, offset)
		if lerr != nil {
			return report, fmt.Errorf("failed to list rooms: %w", lerr)
		}

		for _, room := range rooms {
			rerr := s.snapshotRoom(ctx, room, snapshotDate, report)
			if rerr == nil && refresh {
				rerr = s.refreshSnapshot(ctx, room.ID, snapshotDate.AddDays(-1), report)
			}
			if rerr != nil {
				report.Failed++
				s.metrics.JobUnitFailures.WithLabelValues("snapshot").Inc()
				s.logger.WithFields(logrus.Fields{
					"room_id":       room.ID,
					"snapshot_date": snapshotDate,
				}).WithError(rerr).Error("Failed to build leaderboard snapshot")
				unitErrs = multierror.Append(unitErrs, fmt.Errorf("room %s: %w", room.ID, rerr))
			}
		}

		if len(rooms) < userPageSize {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"snapshot_date": snapshotDate,
		"rooms":         report.RoomsProcessed,
		"upserted":      report.Upserted,
		"refreshed":     report.Refreshed,
		"failed":        report.Failed,
		"dry_run":       report.DryRun,
	}).Info("Leaderboard snapshots finished")

	return report, unitErrs.ErrorOrNil()
}

func (s *Service) snapshotRoom(ctx context.Context, room *models.Room, snapshotDate dates.Date, report *SnapshotReport) error {
	ranking, err := s.rankRoom(ctx, room.ID, snapshotDate)
	if err != nil {
		return err
	}
	if len(ranking) == 0 {
		return nil
	}

	if report.DryRun {
		report.RoomsProcessed++
		report.Rooms = append(report.Rooms, RoomRanking{RoomID: room.ID, Ranking: ranking})
		return nil
	}

	saved, err := s.saveSnapshot(ctx, room.ID, snapshotDate, ranking)
	if err != nil {
		return err
	}
	report.RoomsProcessed++
	report.Upserted++
	report.Snapshots = append(report.Snapshots, saved)
	return nil
}

// refreshSnapshot rebuilds the room's snapshot for date if one exists.
func (s *Service) refreshSnapshot(ctx context.Context, roomID uuid.UUID, date dates.Date, report *SnapshotReport) error {
	existing, err := s.repos.Leaderboards.Get(ctx, roomID, date)
	if err != nil {
		return fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if existing == nil {
		return nil
	}
	if _, err := s.BuildLeaderboard(ctx, roomID, date); err != nil {
		return err
	}
	report.Refreshed++
	return nil
}

// GetLeaderboard reads a room's snapshot for date, or for yesterday in the
// reference zone when date is empty. Only room members may read it.
func (s *Service) GetLeaderboard(ctx context.Context, userID, roomID uuid.UUID, date string) (*LeaderboardView, error) {
	meta := LeaderboardMeta{}
	if d := strings.TrimSpace(date); d != "" {
		parsed, err := parseDateField("date", d)
		if err != nil {
			return nil, err
		}
		meta.UsedDate = parsed
	} else {
		meta.UsedDate = DefaultSnapshotDate(s.now(), s.referenceZone)
		meta.DefaultedDate = true
		meta.Note = DefaultedDateNote
	}

	member, err := s.repos.Rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check room membership: %w", err)
	}
	if !member {
		return nil, ErrNotRoomMember
	}

	snapshot, err := s.repos.Leaderboards.Get(ctx, roomID, meta.UsedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if snapshot == nil {
		return nil, ErrSnapshotNotFound
	}
	return &LeaderboardView{Snapshot: snapshot, Meta: meta}, nil
}

// LatestLeaderboard returns the snapshot of the room bound to chatID for the
// default snapshot date.
func (s *Service) LatestLeaderboard(ctx context.Context, chatID int64) (*models.Room, *models.LeaderboardSnapshot, error) {
	room, err := s.repos.Rooms.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get room by chat: %w", err)
	}
	if room == nil {
		return nil, nil, ErrRoomNotFound
	}
	snapshot, err := s.repos.Leaderboards.Get(ctx, room.ID, DefaultSnapshotDate(s.now(), s.referenceZone))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if snapshot == nil {
		return room, nil, ErrSnapshotNotFound
	}
	return room, snapshot, nil
}

// AnnounceSnapshots hands each snapshot to a for rooms bound to a chat.
func (s *Service) AnnounceSnapshots(ctx context.Context, a Announcer, snapshots []*models.LeaderboardSnapshot) error {
	var errs *multierror.Error
	for _, snap := range snapshots {
		room, err := s.repos.Rooms.GetByID(ctx, snap.RoomID)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("room %s: %w", snap.RoomID, err))
			continue
		}
		if room == nil || room.TelegramChatID == nil {
			continue
		}
		if err := a.Announce(ctx, room, snap); err != nil {
			s.logger.WithField("room_id", room.ID).WithError(err).Warn("Failed to announce leaderboard")
			errs = multierror.Append(errs, fmt.Errorf("room %s: %w", room.ID, err))
		}
	}
	return errs.ErrorOrNil()
}
