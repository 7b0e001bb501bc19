package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moneta-app/moneta/internal/config"
	"github.com/moneta-app/moneta/internal/extract"
	"github.com/moneta-app/moneta/internal/filestore"
	infraBQ "github.com/moneta-app/moneta/internal/infra/bigquery"
	"github.com/moneta-app/moneta/internal/jobs"
	"github.com/moneta-app/moneta/internal/jobs/inmemory"
	"github.com/moneta-app/moneta/internal/ledger"
	"github.com/moneta-app/moneta/internal/logger"
	"github.com/moneta-app/moneta/internal/textsource"
	"github.com/moneta-app/moneta/internal/workflow"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("MONETA_CONFIG"), "Path to YAML config file (or set MONETA_CONFIG env)")
		bucket     = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for document files")
		projectID  = flag.String("project", os.Getenv("BQ_PROJECT"), "BigQuery project")
		datasetID  = flag.String("dataset", envOr("BQ_DATASET", "finance"), "BigQuery dataset")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New("worker")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if *bucket != "" {
		cfg.Storage.Bucket = *bucket
	}

	ctx := context.Background()

	if cfg.Storage.Bucket == "" || *projectID == "" {
		log.Fatal().Msg("The worker needs -bucket and -project; in-memory stores only make sense inside the API process")
	}

	files, err := filestore.NewGCSStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS store")
	}
	defer files.Close()

	ledgerStore, err := infraBQ.NewLedgerStore(ctx, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger store")
	}
	defer ledgerStore.Close()

	docStore, err := infraBQ.NewDocumentStore(ctx, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer docStore.Close()

	var model extract.ModelClient
	gemini, err := extract.NewGeminiClient(ctx, cfg.Model.Name)
	if err != nil {
		log.Warn().Err(err).Msg("Generative model unavailable, running fallback extraction only")
	} else {
		model = gemini
	}

	svc := workflow.NewService(workflow.Deps{
		Documents:       docStore,
		Ledger:          ledgerStore,
		Files:           files,
		Texts:           textsource.NewResolver(),
		Pipeline:        extract.NewPipeline(cfg.Extraction, cfg.Model, model, log),
		Contexts:        ledger.NewContextProvider(ledgerStore, 50, cfg.Model.MaxContextChars),
		MaxRawTextChars: cfg.Extraction.MaxRawTextChars,
		Log:             log,
	})

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	// Create context that cancels on interrupt
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		extractJob, ok := job.(*jobs.ExtractDocumentJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", extractJob.JobID).
			Str("document_id", extractJob.DocumentID).
			Msg("Processing extraction job")

		if err := svc.Process(ctx, extractJob.OwnerID, extractJob.DocumentID); err != nil {
			log.Error().
				Err(err).
				Str("job_id", extractJob.JobID).
				Str("document_id", extractJob.DocumentID).
				Msg("Extraction job failed")
			return err
		}

		log.Info().
			Str("job_id", extractJob.JobID).
			Str("document_id", extractJob.DocumentID).
			Msg("Extraction job completed")
		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
