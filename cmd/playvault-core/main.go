package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/playvault/playvault-go/internal/cache"
	"github.com/playvault/playvault-go/internal/config"
	"github.com/playvault/playvault-go/internal/download"
	"github.com/playvault/playvault-go/internal/metadata"
	"github.com/playvault/playvault-go/internal/monitoring"
	"github.com/playvault/playvault-go/internal/security"
	"github.com/playvault/playvault-go/internal/store"
	"github.com/playvault/playvault-go/internal/syncer"
	"github.com/playvault/playvault-go/internal/transport"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	dbPath := flag.String("db", "", "path to the database file")
	listenAddr := flag.String("listen", "127.0.0.1:9180", "address for the metrics/health endpoint")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("playvault-core " + version)
		return
	}

	if err := run(*configPath, *dbPath, *listenAddr); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath, listenAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := monitoring.NewLogger(&monitoring.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting playvault-core", zap.String("version", version))

	apiKey := cfg.Server.APIKey
	if cfg.Server.APIKeyEncrypted && apiKey != "" {
		encryptor := security.NewKeyEncryptor(config.GetDataDir())
		apiKey, err = encryptor.Decrypt(apiKey)
		if err != nil {
			return fmt.Errorf("failed to decrypt api key: %w", err)
		}
	}

	if dbPath == "" {
		dbPath = config.GetDefaultDBPath()
	}
	db, err := store.InitDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	contentStore := store.NewContentStore(db)
	queueStore := store.NewQueueStore(db)
	playlistStore := store.NewPlaylistStore(db)

	cacheManager := cache.NewManager(contentStore, logger.Named("cache"))

	client := transport.NewClient(transport.Options{
		BaseURL:        cfg.Server.BaseURL,
		APIKey:         apiKey,
		BandwidthLimit: int64(cfg.Download.BandwidthLimit),
	})

	orchestrator := download.NewOrchestrator(download.Options{
		Queue:     queueStore,
		Cache:     cacheManager,
		Transport: client,
		Extractor: metadata.NewExtractor(cfg.Cache.CoverArtMaxPixels),
		StreamURL: client.StreamURL,
		Logger:    logger.Named("download"),
		Config:    cfg.Download,
	})
	if err := orchestrator.Start(); err != nil {
		return fmt.Errorf("failed to start download orchestrator: %w", err)
	}
	defer orchestrator.Stop()

	reconciler := syncer.NewReconciler(syncer.Options{
		Playlists: playlistStore,
		Cache:     cacheManager,
		Enqueuer:  orchestrator,
		API:       transport.NewPlaylistClient(client),
		Logger:    logger.Named("syncer"),
		Config:    cfg.Sync,
	})
	reconciler.Start()
	defer reconciler.Stop()

	if enqueued, err := reconciler.DownloadMissingTracks(); err != nil {
		logger.Warn("startup repair failed", zap.Error(err))
	} else if enqueued > 0 {
		logger.Info("startup repair enqueued tracks", zap.Int("count", enqueued))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stopJanitor := startEvictionJanitor(ctx, cacheManager, cfg.Cache, logger.Named("janitor"))
	defer stopJanitor()

	server := startHTTPServer(listenAddr, db, queueStore, cacheManager, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}

	return nil
}

// startEvictionJanitor periodically compares the cache size to the configured
// budget and evicts toward it under pressure.
func startEvictionJanitor(ctx context.Context, manager *cache.Manager, cfg config.CacheConfig, logger *zap.Logger) func() {
	if cfg.MaxSizeBytes <= 0 || cfg.EvictCheckSeconds <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(time.Duration(cfg.EvictCheckSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				size, err := manager.TotalSize()
				if err != nil {
					logger.Warn("failed to read cache size", zap.Error(err))
					continue
				}
				if size <= cfg.MaxSizeBytes {
					continue
				}

				evicted, err := manager.EvictToTarget(cfg.MaxSizeBytes)
				if err != nil {
					logger.Warn("eviction sweep failed", zap.Error(err))
					continue
				}
				logger.Info("eviction sweep finished",
					zap.Int("evicted", evicted),
					zap.Int64("budget", cfg.MaxSizeBytes))
			}
		}
	}()

	return func() { <-done }
}

// startHTTPServer serves the metrics and health endpoints
func startHTTPServer(addr string, db *sql.DB, queue *store.QueueStore, manager *cache.Manager, logger *zap.Logger) *http.Server {
	checker := monitoring.NewHealthChecker(version, db)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		queueSize := 0
		if stats, err := queue.GetStats(); err == nil {
			queueSize = stats.Pending + stats.Downloading
		}

		cacheSize, _ := manager.TotalSize()

		health := checker.Check(queueSize, cacheSize)

		w.Header().Set("Content-Type", "application/json")
		if health.Status == monitoring.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http endpoint listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	return server
}
