package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/moneta-app/moneta/internal/api/handlers"
	"github.com/moneta-app/moneta/internal/api/middleware"
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
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("MONETA_CONFIG"), "Path to YAML config file (or set MONETA_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
		bucket     = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for document uploads; empty runs the in-memory store")
		projectID  = flag.String("project", os.Getenv("BQ_PROJECT"), "BigQuery project; empty runs the in-memory stores")
		datasetID  = flag.String("dataset", envOr("BQ_DATASET", "finance"), "BigQuery dataset")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New("api")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *bucket != "" {
		cfg.Storage.Bucket = *bucket
	}

	ctx := context.Background()

	// Storage and persistence: GCS plus BigQuery in production, in-memory
	// stores for local runs and tests.
	var files filestore.BlobStore
	if cfg.Storage.Bucket != "" {
		gcs, err := filestore.NewGCSStore(ctx, cfg.Storage.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS store")
		}
		defer gcs.Close()
		files = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured, using in-memory file store")
		files = filestore.NewMemoryStore()
	}

	var (
		ledgerStore ledger.Store
		docStore    workflow.DocumentStore
	)
	if *projectID != "" {
		bqLedger, err := infraBQ.NewLedgerStore(ctx, *projectID, *datasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create ledger store")
		}
		defer bqLedger.Close()

		bqDocs, err := infraBQ.NewDocumentStore(ctx, *projectID, *datasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create document store")
		}
		defer bqDocs.Close()

		ledgerStore = bqLedger
		docStore = bqDocs
	} else {
		log.Warn().Msg("No BigQuery project configured, using in-memory stores")
		ledgerStore = ledger.NewMemoryStore()
		docStore = workflow.NewMemoryDocumentStore()
	}

	// Generative model client; extraction degrades to the regex fallback
	// when it is unavailable.
	var model extract.ModelClient
	gemini, err := extract.NewGeminiClient(ctx, cfg.Model.Name)
	if err != nil {
		log.Warn().Err(err).Msg("Generative model unavailable, running fallback extraction only")
	} else {
		model = gemini
	}

	pipeline := extract.NewPipeline(cfg.Extraction, cfg.Model, model, log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	svc := workflow.NewService(workflow.Deps{
		Documents:       docStore,
		Ledger:          ledgerStore,
		Files:           files,
		Texts:           textsource.NewResolver(),
		Pipeline:        pipeline,
		Contexts:        ledger.NewContextProvider(ledgerStore, 50, cfg.Model.MaxContextChars),
		Publisher:       jobQueue,
		MaxRawTextChars: cfg.Extraction.MaxRawTextChars,
		Log:             log,
	})

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
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
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	documentsHandler := handlers.NewDocumentsHandler(svc, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.UploadDocument(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Document ID is required")
			return
		}

		switch {
		case strings.HasSuffix(rest, "/confirm") && r.Method == http.MethodPost:
			documentID := strings.TrimSuffix(rest, "/confirm")
			documentsHandler.ConfirmImport(w, r, documentID)
		case !strings.Contains(rest, "/") && r.Method == http.MethodGet:
			documentsHandler.GetDocument(w, r, rest)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
