package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/database"
	"github.com/stemsi/hello-pdf-submission/internal/events"
	"github.com/stemsi/hello-pdf-submission/internal/handler"
	"github.com/stemsi/hello-pdf-submission/internal/logger"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/renderclient"
	"github.com/stemsi/hello-pdf-submission/internal/repository"
	"github.com/stemsi/hello-pdf-submission/internal/router"
	"github.com/stemsi/hello-pdf-submission/internal/service"
	"github.com/stemsi/hello-pdf-submission/internal/store"
	"github.com/stemsi/hello-pdf-submission/internal/validator"
	"github.com/stemsi/hello-pdf-submission/internal/view"
	"github.com/stemsi/hello-pdf-submission/internal/worker"
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
		Msg("Starting Hello PDF Submission service")

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

	// ─── Initialize Repositories & Host Capabilities ──────────────────
	fieldRepo := repository.NewFieldRepository(pool)
	gradeRepo := repository.NewGradeRepository(pool)

	stateStore := store.NewCachedStore(fieldRepo, rdb, cfg.StateCacheTTL, log)
	gradeQueue := events.NewGradeQueue(rdb)
	submissionFeed := events.NewSubmissionFeed(rdb)

	views, err := view.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse view templates")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	submissionService := service.NewSubmissionService(
		stateStore,
		gradeQueue,
		submissionFeed,
		renderclient.New(cfg.RenderTimeout, log),
		views,
		model.BlockSettings{APIBase: cfg.DefaultAPIBase, Title: cfg.DefaultTitle},
		log,
	)
	monitorService := service.NewMonitorService(fieldRepo, gradeRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Block:   handler.NewBlockHandler(submissionService, log),
		Monitor: handler.NewMonitorHandler(submissionFeed, monitorService, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(map[string]handler.DependencyCheck{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		}, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	gradeWorker := worker.NewGradeWorker(gradeRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		gradeWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 1. Stop accepting new HTTP requests. Submit calls may hold a render
	// request for up to RenderTimeout, so give them that long.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RenderTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the grade worker and wait for its final flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
