package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/dvloznov/statement-import/internal/infra/ledgerdb"
	"github.com/dvloznov/statement-import/internal/jobs"
	"github.com/dvloznov/statement-import/internal/jobs/inmemory"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/pipeline"
	"github.com/rs/zerolog"
)

// jobLine is one line of the job feed. Unlike jobs.ImportJob it carries the
// password, which only lives in memory from here on.
type jobLine struct {
	OwnerID   string `json:"owner_id"`
	Provider  string `json:"provider"`
	GCSURI    string `json:"gcs_uri"`
	Password  string `json:"password"`
	AccountID string `json:"account_id"`
	DryRun    bool   `json:"dry_run"`
}

func main() {
	cfg, warnings := config.Load()

	var (
		feed    = flag.String("jobs", "-", "File with one JSON import job per line, - for stdin")
		workers = flag.Int("workers", 2, "Concurrent imports")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	store, err := ledgerdb.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer store.Close()

	importer, err := pipeline.NewFromConfig(ctx, cfg, store, commit.NewRegistry(cfg.UndoRetention))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build importer")
	}

	storage, err := gcsuploader.NewService(ctx, cfg.GCSBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	if err := jobQueue.Start(ctx, pipeline.JobHandler(importer, storage)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Str("jobs", *feed).Int("workers", *workers).Msg("Worker service started")

	in := io.Reader(os.Stdin)
	if *feed != "-" {
		f, err := os.Open(*feed)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open job feed")
		}
		defer f.Close()
		in = f
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan int, 1)
	go func() {
		done <- publishFeed(ctx, in, jobQueue, log)
	}()

	var published int
	select {
	case published = <-done:
		log.Info().Int("published", published).Msg("Job feed exhausted, waiting for imports")
		waitIdle(ctx, jobStore, quit)
	case <-quit:
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	summarize(jobStore, log)
	log.Info().Msg("Worker service exited")
}

// publishFeed enqueues every valid line of r and returns how many it queued.
func publishFeed(ctx context.Context, r io.Reader, q jobs.Publisher, log zerolog.Logger) int {
	scanner := bufio.NewScanner(r)
	n := 0
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var jl jobLine
		if err := json.Unmarshal(raw, &jl); err != nil {
			log.Error().Err(err).Int("line", line).Msg("Skipping malformed job")
			continue
		}
		if jl.OwnerID == "" || jl.GCSURI == "" {
			log.Error().Int("line", line).Msg("Skipping job without owner_id or gcs_uri")
			continue
		}

		job := &jobs.ImportJob{
			OwnerID:   jl.OwnerID,
			Provider:  jl.Provider,
			GCSURI:    jl.GCSURI,
			Password:  jl.Password,
			AccountID: jl.AccountID,
			DryRun:    jl.DryRun,
		}
		if err := q.PublishImport(ctx, job); err != nil {
			log.Error().Err(err).Int("line", line).Msg("Failed to publish job")
			continue
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Reading job feed")
	}
	return n
}

// waitIdle blocks until no job is pending, running or retrying.
func waitIdle(ctx context.Context, store jobs.JobStore, quit <-chan os.Signal) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			list, err := store.ListJobs(ctx, jobs.JobFilter{})
			if err != nil {
				return
			}
			busy := false
			for _, j := range list {
				if j.Status != jobs.JobStatusCompleted && j.Status != jobs.JobStatusFailed {
					busy = true
					break
				}
			}
			if !busy {
				return
			}
		}
	}
}

func summarize(store jobs.JobStore, log zerolog.Logger) {
	list, err := store.ListJobs(context.Background(), jobs.JobFilter{})
	if err != nil {
		return
	}
	for _, j := range list {
		ev := log.Info()
		if j.Status == jobs.JobStatusFailed {
			ev = log.Error().Str("error", j.Error).Str("code", j.ErrorCode)
		}
		ev.Str("job_id", j.JobID).
			Str("gcs_uri", j.GCSURI).
			Str("status", string(j.Status)).
			Int("parsed", j.Parsed).
			Int("committed", j.Committed).
			Int("deduplicated", j.Deduplicated).
			Msg("Job finished")
	}
}
