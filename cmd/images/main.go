package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cshum/vipsgen/vips"
	"go.uber.org/zap"

	"inkwell/internal/auth"
	"inkwell/internal/blob"
	"inkwell/internal/config"
	"inkwell/internal/detach"
	"inkwell/internal/edgecache"
	"inkwell/internal/httpapi"
	"inkwell/internal/imaging"
	"inkwell/internal/logger"
	"inkwell/internal/metrics"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	vipsConfig := &vips.Config{
		ConcurrencyLevel: cfg.VipsConcurrency,
		MaxCacheMem:      cfg.VipsMaxCacheMB * 1024 * 1024, // Convert MB to bytes
		MaxCacheFiles:    0,                                // Disable disk cache
		MaxCacheSize:     0,                                // Disable disk cache
		ReportLeaks:      false,
		CacheTrace:       false,
		VectorEnabled:    true,
	}

	// Map vips log levels to zap levels
	vips.SetLogging(func(domain string, level vips.LogLevel, message string) {
		if level >= vips.LogLevelError {
			log.Error("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		} else if level >= vips.LogLevelWarning {
			log.Warn("vips", zap.String("domain", domain), zap.Int("level", int(level)), zap.String("message", message))
		}
	}, vips.LogLevelError)

	vips.Startup(vipsConfig)
	defer vips.Shutdown()

	log.Info("VIPS initialized",
		zap.Int("max_cache_mb", cfg.VipsMaxCacheMB),
		zap.Int("concurrency", cfg.VipsConcurrency),
	)

	ctx := context.Background()

	var gcsClient *storage.Client
	if cfg.BlobBackend == "gcs" {
		gcsClient, err = storage.NewClient(ctx)
		if err != nil {
			log.Fatal("Failed to create GCS client", zap.Error(err))
		}
		defer gcsClient.Close()
	}
	blobs, err := blob.New(cfg.BlobBackend, blob.NewGCSClientAdapter(gcsClient), cfg.GCSBucket, cfg.BlobDir, log)
	if err != nil {
		log.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	responseCache, err := edgecache.NewCache(cfg.EdgeCache, cfg.EdgeCacheDir, cfg.EdgeCacheEntries, log)
	if err != nil {
		log.Fatal("Failed to initialize response cache", zap.Error(err))
	}

	var verifier auth.Verifier = auth.DenyAll{}
	if cfg.AuthPEMPublicKey != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.AuthPEMPublicKey, []string{cfg.AllowedOrigin})
		if err != nil {
			log.Fatal("Failed to initialize token verifier", zap.Error(err))
		}
		verifier = jwtVerifier
	} else {
		log.Warn("AUTH_PEM_PUBLIC_KEY is not set, uploads are disabled")
	}

	m := metrics.New()
	tasks := detach.New(cfg.DetachedTaskTimeout, log)

	handlers := httpapi.New(cfg, log, blobs, responseCache, imaging.NewVipsTransformer(log), verifier, tasks, m)

	mux := http.NewServeMux()

	mux.HandleFunc("/images/", handlers.HandleImage)
	mux.HandleFunc("/upload", handlers.HandleUpload)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.Handle("/metrics", m.Handler())

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Image server started",
		zap.Int("port", cfg.Port),
		zap.String("blob_backend", cfg.BlobBackend),
		zap.String("edge_cache", cfg.EdgeCache),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tasks.WaitContext(shutdownCtx); err != nil {
		log.Warn("Pending cache writes abandoned", zap.Error(err))
	}

	log.Info("Server stopped")
}
