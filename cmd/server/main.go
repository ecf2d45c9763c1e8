package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/mkamau/receiptgen/internal/api/handlers"
	"github.com/mkamau/receiptgen/internal/api/middleware"
	"github.com/mkamau/receiptgen/internal/artifact"
	"github.com/mkamau/receiptgen/internal/config"
	"github.com/mkamau/receiptgen/internal/janitor"
	"github.com/mkamau/receiptgen/internal/jobs/inmemory"
	"github.com/mkamau/receiptgen/internal/logger"
	"github.com/mkamau/receiptgen/internal/parser"
	"github.com/mkamau/receiptgen/internal/pipeline"
	"github.com/mkamau/receiptgen/internal/render"
	"github.com/mkamau/receiptgen/internal/store"
)

func main() {
	// A missing .env is fine; the environment itself may carry the config.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info")
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	db, err := store.NewDatabase(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to open database")
	}

	ctx := context.Background()

	var artifacts artifact.Store
	if cfg.GCSBucket != "" {
		gcsStore, err := artifact.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.GCSBucket).Msg("Failed to create GCS artifact store")
		}
		defer gcsStore.Close()
		artifacts = gcsStore
		log.Info().Str("bucket", cfg.GCSBucket).Msg("Storing receipt PDFs in GCS")
	} else {
		fsStore, err := artifact.NewFSStore(cfg.ArtifactDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.ArtifactDir).Msg("Failed to create artifact directory")
		}
		artifacts = fsStore
		log.Info().Str("dir", cfg.ArtifactDir).Msg("Storing receipt PDFs on local disk")
	}

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.RenderQueueSize, cfg.RenderWorkers, jobStore)

	pipe := pipeline.New(
		parser.New(loc),
		db,
		artifacts,
		jobQueue,
		render.New(loc, log),
		log,
	)

	// Start render workers in background
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.RenderWorkers).Msg("Starting render workers")
		if err := jobQueue.Start(workerCtx, pipe.ProcessRenderJob); err != nil {
			log.Error().Err(err).Msg("Render workers stopped with error")
		}
	}()

	// Retention janitor
	retention := time.Duration(cfg.RetentionHours) * time.Hour
	jan := janitor.New(db, artifacts, retention, log)

	scheduler := cron.New(cron.WithLocation(loc))
	if _, err := jan.Register(scheduler); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule retention sweep")
	}
	scheduler.Start()

	// Initialize handlers
	receiptsHandler := handlers.NewReceiptsHandler(db, pipe, artifacts, log)
	settingsHandler := handlers.NewSettingsHandler(db, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/receipts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			receiptsHandler.IngestReceipt(w, r)
		case http.MethodGet:
			receiptsHandler.ListReceipts(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			receiptsHandler.ClearReceipts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Extract reference code from /api/receipts/{code}/pdf
		rest := strings.TrimPrefix(r.URL.Path, "/api/receipts/")
		code, ok := strings.CutSuffix(rest, "/pdf")
		if !ok || code == "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		receiptsHandler.DownloadReceipt(w, r, code)
	})

	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			settingsHandler.GetSettings(w, r)
		case http.MethodPost:
			settingsHandler.UpdateSettings(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Tenant scoping applies to the API surface only; /health stays open.
	root := http.NewServeMux()
	root.Handle("/api/", middleware.BusinessID(mux))
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(root),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting receipt server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cronCtx := scheduler.Stop()
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for in-flight render jobs, then close the queue
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping render queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close render queue")
	}

	// Let a running sweep finish
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
	}

	log.Info().Msg("Server exited")
}
