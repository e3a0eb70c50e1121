package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/admission"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/http/handlers"
	httpapi "github.com/SFitz911/sfitz911-avatar-generator/internal/http/httpapi"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/infra"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/orchestrator"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/pipeline"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/record"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/storage"
	"github.com/SFitz911/sfitz911-avatar-generator/internal/workspace"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Job records live in Redis under a TTL; without Redis the service
	// still runs, with records held in memory for the process lifetime.
	var store record.Store
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory job records")
		store = record.NewMemoryStore()
	} else {
		defer client.Close()
		store = record.NewRedisStore(client)
	}

	files, err := storage.NewFileStore(cfg.OutputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare workspace directories")
	}

	gate := admission.NewController(cfg.MaxConcurrentJobs)
	synth := &pipeline.NopSynthesizer{StageDuration: time.Duration(cfg.StageSeconds) * time.Second}
	runner := pipeline.NewRunner(synth, files, nil, logger)
	orch := orchestrator.New(store, files, runner, gate, logger, orchestrator.Options{
		TTL:                cfg.JobTTL,
		MaxDurationSeconds: cfg.MaxVideoSeconds,
	})
	ws := workspace.NewManager(files, store, gate, logger)

	app := handlers.NewApp(cfg, logger, orch, ws, files, store)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()

		// Stop accepting requests first, then let in-flight jobs reach the
		// next stage boundary and record a terminal state.
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		if err := orch.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("jobs did not drain before deadline")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}
