package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-gateway/internal/config"
	"document-gateway/internal/db"
	"document-gateway/internal/objectstore"
	"document-gateway/internal/search"
	"document-gateway/internal/server"
	"document-gateway/internal/store"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		log.Printf("service=gateway msg=%q err=%v", "invalid_configuration", err)
		os.Exit(1)
	}

	logger, err := server.NewLogger(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("service=gateway msg=%q err=%v", "logger_init_failed", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Relational store
	sqlDB, err := store.Open(cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	logger.Info("running migrations")
	if err := db.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	relational := store.New(sqlDB, logger, cfg.BackendTimeout)

	// Object store
	objects, err := objectstore.New(objectstore.Config{
		Endpoint:     cfg.Storage.Endpoint,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		DataBucket:   cfg.Storage.DataBucket,
		BackupBucket: cfg.Storage.BackupBucket,
		Timeout:      cfg.BackendTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("object store client: %w", err)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		return fmt.Errorf("ensure buckets: %w", err)
	}

	// Search index
	engine, closer, err := newSearchEngine(cfg.Search, cfg.BackendTimeout)
	if err != nil {
		return fmt.Errorf("search engine: %w", err)
	}
	defer func() { _ = closer.Close() }()
	index := search.New(engine, logger, cfg.BackendTimeout)
	if err := index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure search index: %w", err)
	}

	var notifier server.Notifier
	if cfg.Email.Enabled {
		notifier = server.NewEmailService(cfg.Email, logger.Named("email"))
	}

	srv := server.New(server.Config{
		Addr:               cfg.Addr,
		Build:              server.BuildInfo{Version: cfg.Version, Commit: cfg.Commit},
		AllowedOrigin:      cfg.AllowedOrigin,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DB:                 relational,
		Search:             index,
		Objects:            objects,
		Notifier:           notifier,
		Logger:             logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting",
			zap.String("addr", cfg.Addr),
			zap.String("version", cfg.Version),
			zap.String("commit", cfg.Commit),
			zap.String("search_backend", index.Backend()))
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newSearchEngine picks the search backend. The returned closer releases
// embedded index files.
func newSearchEngine(cfg config.SearchConfig, timeout time.Duration) (search.Engine, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMeilisearch, "":
		e, err := search.NewMeiliEngine(cfg.URL, cfg.APIKey, cfg.Index, timeout)
		if err != nil {
			return nil, nil, err
		}
		return e, nopCloser{}, nil
	case config.BackendBleve:
		e, err := search.OpenBleve(cfg.BlevePath)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	}
	return nil, nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
}
