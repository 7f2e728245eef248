package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-import/internal/api/handlers"
	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/dvloznov/statement-import/internal/infra/ledgerdb"
	"github.com/dvloznov/statement-import/internal/jobs"
	"github.com/dvloznov/statement-import/internal/jobs/inmemory"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/pipeline"
)

func main() {
	cfg, warnings := config.Load()

	var (
		port    = flag.String("port", cfg.Port, "HTTP server port")
		bucket  = flag.String("bucket", cfg.GCSBucket, "GCS bucket for background imports (or set GCS_BUCKET env)")
		workers = flag.Int("workers", 2, "Background import workers")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := ledgerdb.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer store.Close()

	registry := commit.NewRegistry(cfg.UndoRetention)
	importer, err := pipeline.NewFromConfig(ctx, cfg, store, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build importer")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Background imports need somewhere to keep the file between request
	// and job, so they are only enabled with a bucket.
	var (
		uploader  handlers.Uploader
		publisher jobs.Publisher
	)
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - background imports will be disabled")
	} else {
		storage, err := gcsuploader.NewService(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()

		uploader = storage
		publisher = jobQueue

		log.Info().Int("workers", *workers).Msg("Starting job workers")
		if err := jobQueue.Start(workerCtx, pipeline.JobHandler(importer, storage)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
	}

	mux := http.NewServeMux()
	handlers.Register(mux,
		handlers.NewImportsHandler(importer, registry, publisher, uploader, cfg.MaxUploadBytes),
		handlers.NewJobsHandler(jobStore),
		handlers.NewAccountsHandler(store),
	)

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth("/health")(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("ledger", cfg.LedgerDriver).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight imports finish before cancelling the workers.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
