package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Kerhoff/fitrooms/internal/api"
	"github.com/Kerhoff/fitrooms/internal/config"
	"github.com/Kerhoff/fitrooms/internal/handlers"
	"github.com/Kerhoff/fitrooms/internal/metrics"
	"github.com/Kerhoff/fitrooms/internal/repository/postgres"
	"github.com/Kerhoff/fitrooms/internal/service"
	"github.com/Kerhoff/fitrooms/internal/telegram"
	"github.com/Kerhoff/fitrooms/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	l.Info("Starting FitRooms...")

	// Database
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Service layer
	svc := service.New(postgres.NewRepositories(db.DB), postgres.NewTransactor(db.DB), l, service.Options{Metrics: m})

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Telegram bot is optional
	var announcer service.Announcer
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
		bot.RegisterCommand("start", handlers.NewStartHandler(l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("leaderboard", handlers.NewLeaderboardHandler(svc, l))
		announcer = bot.Announcer()

		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	} else {
		l.Info("TELEGRAM_TOKEN not set, chat announcements disabled")
	}

	// Periodic jobs
	if cfg.Scheduler.Enabled {
		schedule := service.Schedule{
			Settle:   cfg.Scheduler.Settle,
			Scoring:  cfg.Scheduler.Scoring,
			Snapshot: cfg.Scheduler.Snapshot,
		}
		go func() {
			if err := svc.StartScheduler(ctx, schedule, announcer); err != nil {
				l.Errorf("Scheduler error: %v", err)
				cancel()
			}
		}()
	}

	// Metrics endpoint
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Infof("Metrics listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("Metrics server error: %v", err)
		}
	}()

	// HTTP API
	apiServer := api.NewServer(svc, l, cfg.AdminToken)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	l.Info("FitRooms started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown: %v", err)
	}

	l.Info("FitRooms stopped")
}
