package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/parklinehq/parkline/internal/billing"
	"github.com/parklinehq/parkline/internal/config"
	"github.com/parklinehq/parkline/internal/domain/reconcile"
	"github.com/parklinehq/parkline/internal/domain/submit"
	"github.com/parklinehq/parkline/internal/media"
	"github.com/parklinehq/parkline/internal/scheduler"
	"github.com/parklinehq/parkline/internal/sqlite"
	"github.com/parklinehq/parkline/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ticketRepo := sqlite.NewTicketRepository(db)
	archiveRepo := sqlite.NewArchiveRepository(db)
	cancelRepo := sqlite.NewCancelRepository(db)

	mediaStore := media.NewFSStore(media.Config{
		CarImagesDir:   cfg.Media.CarImagesDir,
		EntryImagesDir: cfg.Media.EntryImagesDir,
		ExitVideosDir:  cfg.Media.ExitVideosDir,
	}, logger)

	billingClient := billing.NewClient(billing.Config{
		BaseURL:    cfg.Billing.BaseURL,
		Token:      cfg.Billing.Token,
		Conf:       cfg.Billing.Conf,
		Retries:    cfg.Billing.Retries,
		RetryDelay: time.Duration(cfg.Billing.RetryDelaySecs) * time.Second,
		Timeout:    time.Duration(cfg.Billing.TimeoutSecs) * time.Second,
	}, logger)

	reconcileSvc := reconcile.NewService(ticketRepo, mediaStore, logger)
	submitSvc := submit.NewService(ticketRepo, mediaStore, billingClient, logger)
	sched := scheduler.New(ticketRepo, submitSvc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	router := transport.NewServer(
		reconcileSvc, submitSvc, sched,
		ticketRepo, archiveRepo, cancelRepo,
		cfg.Auth.Token, logger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cancel)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
