package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/provex-backend/internal/config"
	"github.com/stemsi/provex-backend/internal/database"
	"github.com/stemsi/provex-backend/internal/handler"
	"github.com/stemsi/provex-backend/internal/logger"
	"github.com/stemsi/provex-backend/internal/relay"
	"github.com/stemsi/provex-backend/internal/router"
	"github.com/stemsi/provex-backend/internal/service"
	"github.com/stemsi/provex-backend/internal/store/postgres"
	"github.com/stemsi/provex-backend/internal/validator"
	"github.com/stemsi/provex-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Provex Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Stores ─────────────────────────────────────────────
	attemptStore := postgres.NewAttemptStore(pool)
	examStore := postgres.NewExamStore(pool)
	questionStore := postgres.NewQuestionStore(pool)
	userStore := postgres.NewUserStore(pool)

	// ─── Initialize Services ───────────────────────────────────────────
	mirrorQueue := worker.NewMirrorQueue(rdb)
	notifier := service.NewLogNotifier(log)

	mediaStorage, err := service.NewDiskMediaStorage(cfg.RecordingDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare recording storage")
	}

	authService := service.NewAuthService(cfg, userStore)
	sessionService := service.NewSessionService(attemptStore, examStore, userStore, mirrorQueue, notifier, log)
	takeService := service.NewTakeService(attemptStore, examStore, questionStore, log)
	autosaveService := service.NewAutosaveService(attemptStore, examStore, mirrorQueue, notifier, log)
	scoringService := service.NewScoringService(attemptStore, examStore, questionStore, mirrorQueue, notifier, log)
	recordingService := service.NewRecordingService(attemptStore, mediaStorage, mirrorQueue, cfg.MaxRecordingBytes, log)
	snapshotService := service.NewSnapshotService(rdb, attemptStore, cfg.SnapshotTTL, log)

	relayRegistry := relay.NewRegistry(log)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Session: handler.NewSessionHandler(sessionService),
		Attempt: handler.NewAttemptHandler(takeService, autosaveService, scoringService),
		Proctor: handler.NewProctorHandler(rdb, recordingService, snapshotService, log),
		Relay:   handler.NewRelayHandler(relayRegistry, attemptStore, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ──────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	mirrorWorker := worker.NewMirrorWorker(rdb, attemptStore, examStore, log)
	expiryWorker := worker.NewExpiryWorker(attemptStore, cfg.ExpirySweepInterval, log)

	go mirrorWorker.Start(workerCtx)
	go expiryWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
