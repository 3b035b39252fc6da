package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vidcourier/internal/catalog"
	"vidcourier/internal/config"
	"vidcourier/internal/database"
	"vidcourier/internal/downloader"
	"vidcourier/internal/logger"
	"vidcourier/internal/notify"
	"vidcourier/internal/pipeline"
	"vidcourier/internal/repository"
	"vidcourier/internal/scheduler"
	"vidcourier/internal/token"
	"vidcourier/internal/youtube"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration; an invalid schedule refuses to start here.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	zlog.Info("database connected")

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	zlog.Info("migrations completed")

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	transferRepo := repository.NewTransferRepository(db)

	// Initialize external clients
	youtubeClient := youtube.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret)
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogAPIKey)

	// Initialize services
	tokenManager := token.NewManager(accountRepo, youtubeClient, zlog.Named("token"))
	dl := downloader.New(cfg.WorkDir, cfg.MinVideoBytes, zlog.Named("downloader"))
	sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	notifier := notify.NewNotifier(sender, cfg.ReportEmail, zlog.Named("notify"))

	runner := pipeline.NewRunner(
		catalogClient,
		accountRepo,
		transferRepo,
		tokenManager,
		youtubeClient,
		dl,
		notifier,
		zlog.Named("pipeline"),
	)

	sched := scheduler.New(
		accountRepo,
		runner,
		notifier,
		cfg.CronSpec(),
		cfg.MaxAccountsPerCycle,
		zlog.Named("scheduler"),
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	zlog.Info("worker started",
		zap.Int("scheduleHour", cfg.ScheduleHour),
		zap.Int("scheduleMinute", cfg.ScheduleMinute),
		zap.String("scheduleTimezone", cfg.ScheduleTimezone))

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	zlog.Info("shutdown signal received")
	cancel()

	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		zlog.Info("worker stopped")
	case <-time.After(time.Duration(cfg.ShutdownTimeout) * time.Second):
		zlog.Warn("shutdown timeout exceeded")
	}

	return nil
}
