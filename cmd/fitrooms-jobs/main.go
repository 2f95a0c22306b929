package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/Kerhoff/fitrooms/internal/config"
	"github.com/Kerhoff/fitrooms/internal/repository/postgres"
	"github.com/Kerhoff/fitrooms/internal/service"
	"github.com/Kerhoff/fitrooms/internal/telegram"
	"github.com/Kerhoff/fitrooms/pkg/logger"
)

func main() {
	job := flag.StringP("job", "j", "", "job to run: settle, score or snapshot")
	date := flag.StringP("date", "d", "", "target date (YYYY-MM-DD)")
	tz := flag.String("tz", "", "timezone replacing every user's profile timezone (settle only)")
	dryRun := flag.Bool("dry-run", false, "compute without writing")
	announce := flag.Bool("announce", false, "post written snapshots to bound chats (snapshot only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	jobLog := logger.WithFields(l, logrus.Fields{"job": *job, "date": *date, "dry_run": *dryRun})

	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		jobLog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		jobLog.Fatalf("Failed to run migrations: %v", err)
	}

	svc := service.New(postgres.NewRepositories(db.DB), postgres.NewTransactor(db.DB), l, service.Options{})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := run(ctx, svc, cfg, l, *job, *date, *tz, *dryRun, *announce)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			jobLog.WithError(encErr).Error("Failed to encode report")
		}
	}
	if err != nil {
		jobLog.WithError(err).Error("Job failed")
		db.Close()
		os.Exit(1)
	}
	jobLog.Info("Job finished")
}

func run(ctx context.Context, svc *service.Service, cfg *config.Config, l *logrus.Logger, job, date, tz string, dryRun, announce bool) (any, error) {
	switch job {
	case "settle":
		report, err := svc.SettleDailyStats(ctx, service.SettleRequest{Date: date, TZ: tz, DryRun: dryRun})
		if report == nil {
			return nil, err
		}
		return report, err
	case "score":
		report, err := svc.ScoreTeams(ctx, service.ScoreRequest{Date: date, DryRun: dryRun})
		if report == nil {
			return nil, err
		}
		return report, err
	case "snapshot":
		report, err := svc.BuildAllLeaderboards(ctx, service.SnapshotRequest{Date: date, DryRun: dryRun})
		if report == nil {
			return nil, err
		}
		if err != nil || !announce || len(report.Snapshots) == 0 {
			return report, err
		}
		if cfg.TelegramToken == "" {
			return report, fmt.Errorf("--announce requires TELEGRAM_TOKEN")
		}
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return report, fmt.Errorf("failed to create bot API: %w", err)
		}
		return report, svc.AnnounceSnapshots(ctx, telegram.NewAnnouncer(api, l), report.Snapshots)
	default:
		return nil, fmt.Errorf("unknown job %q (want settle, score or snapshot)", job)
	}
}
