package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Schedule holds the cron specs of the batch jobs. An empty spec disables
// that job. Specs may carry a CRON_TZ= prefix.
type Schedule struct {
	Settle   string
	Scoring  string
	Snapshot string
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

// StartScheduler runs settlement, team scoring and leaderboard snapshots on
// their cron schedules. Fresh snapshots are passed to announcer when it is
// not nil. It blocks until the context is cancelled, so it should be
// launched in a separate goroutine.
func (s *Service) StartScheduler(ctx context.Context, schedule Schedule, announcer Announcer) error {
	logger := cronLogger{entry: s.logger.WithField("component", "scheduler")}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"settle", schedule.Settle, func() {
			if _, err := s.SettleDailyStats(ctx, SettleRequest{}); err != nil {
				s.logger.WithError(err).Error("Scheduled settlement finished with errors")
			}
		}},
		{"score", schedule.Scoring, func() {
			if _, err := s.ScoreTeams(ctx, ScoreRequest{}); err != nil {
				s.logger.WithError(err).Error("Scheduled team scoring finished with errors")
			}
		}},
		{"snapshot", schedule.Snapshot, func() {
			report, err := s.BuildAllLeaderboards(ctx, SnapshotRequest{})
			if err != nil {
				s.logger.WithError(err).Error("Scheduled leaderboard build finished with errors")
			}
			if announcer == nil || report == nil {
				return
			}
			if err := s.AnnounceSnapshots(ctx, announcer, report.Snapshots); err != nil {
				s.logger.WithError(err).Warn("Some leaderboards were not announced")
			}
		}},
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := c.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.name, "spec": job.spec}).Info("Job scheduled")
	}

	c.Start()
	s.logger.Info("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}
