package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inkwell/internal/api"
	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/detach"
	"inkwell/internal/entitycache"
	"inkwell/internal/kv"
	"inkwell/internal/logger"
	"inkwell/internal/metrics"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/store"
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

	ctx := context.Background()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// An unreachable KV store leaves caching off rather than failing startup.
	backend, err := kv.New(ctx, cfg.KVBackend, kv.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize entity cache", zap.Error(err))
	}
	if closer, ok := backend.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	m := metrics.New()
	tasks := detach.New(cfg.DetachedTaskTimeout, log)
	cache := entitycache.New(backend, tasks, log, m)

	ttl := repository.TTLs{
		Entity: cfg.CacheTTLEntity,
		List:   cfg.CacheTTLList,
		Owner:  cfg.CacheTTLOwner,
	}
	articles := repository.NewArticles(store.NewArticleStore(db), cache, ttl)
	categories := repository.NewCategories(store.NewCategoryStore(db), cache, ttl)
	images := repository.NewImages(store.NewImageStore(db), cache, ttl)
	users := repository.NewUsers(store.NewUserStore(db), cache, ttl)

	var verifier auth.Verifier = auth.DenyAll{}
	if cfg.AuthPEMPublicKey != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.AuthPEMPublicKey, []string{cfg.AllowedOrigin})
		if err != nil {
			log.Fatal("Failed to initialize token verifier", zap.Error(err))
		}
		verifier = jwtVerifier
	} else {
		log.Warn("AUTH_PEM_PUBLIC_KEY is not set, writes are disabled")
	}

	srv := api.NewServer(
		service.NewArticleService(articles, categories, images, log),
		service.NewCategoryService(categories),
		service.NewUserService(users),
		verifier,
		m,
		cfg.AllowedOrigin,
		log,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: srv.Router(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("API server started",
		zap.Int("port", cfg.APIPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("kv_backend", cfg.KVBackend),
		zap.Bool("entity_cache", cache.Available()),
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
