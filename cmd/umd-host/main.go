package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.etcd.io/bbolt"

	"github.com/umdl/umd-host/internal/adapter/driven"
	"github.com/umdl/umd-host/internal/adapter/driver"
	"github.com/umdl/umd-host/internal/application"
	"github.com/umdl/umd-host/internal/config"
)

func main() {
	// Load .env if present; real environment wins over file values.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Create structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	downloadsDir, err := cfg.AbsDownloadsDir()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger.Info("starting umd-host",
		"address", cfg.HTTP.Address,
		"port", cfg.HTTP.Port,
		"db_path", cfg.DB.Path,
		"downloads_dir", downloadsDir,
		"fetch_timeout", cfg.Fetch.Timeout,
		"probe_timeout", cfg.Fetch.ProbeTimeout,
		"concurrency", cfg.Downloads.Concurrency,
	)

	// Open BoltDB for the download journal
	db, err := bbolt.Open(cfg.DB.Path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}()

	// Create driven adapters
	historyRepo, err := driven.NewHistoryBoltDBRepository(db)
	if err != nil {
		log.Fatalf("failed to create history repository: %v", err)
	}

	fetcher := driven.NewHTTPMediaFetcher(cfg.Fetch.Timeout, nil)

	sink, err := driven.NewFileDownloadSink(downloadsDir, nil, logger)
	if err != nil {
		log.Fatalf("failed to create download sink: %v", err)
	}

	// Create application services
	registry := application.NewRegistryService(fetcher, logger, cfg.Fetch.ProbeTimeout)
	defer registry.Close()

	downloads := application.NewDownloadService(registry, fetcher, sink, historyRepo, logger, cfg.Downloads.Concurrency)
	rescans := application.NewRescanHub(logger)

	// Create HTTP handlers
	messageHandler := driver.NewMessageHTTPHandler(registry, downloads, rescans, logger)
	rescanHandler := driver.NewRescanHTTPHandler(rescans, logger)
	historyHandler := driver.NewHistoryHTTPHandler(historyRepo)
	healthHandler := driver.NewHealthHTTPHandler(historyRepo)

	// Register routes
	mux := http.NewServeMux()
	mux.Handle("/messages", messageHandler)
	mux.Handle("/rescan", rescanHandler)
	mux.Handle("/history", historyHandler)
	mux.Handle("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	// Create HTTP server. No WriteTimeout: /rescan holds a long-lived
	// event stream.
	server := &http.Server{
		Addr:        cfg.HTTP.Address + ":" + cfg.HTTP.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
