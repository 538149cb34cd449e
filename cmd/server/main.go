// Package main is the entry point for the publica API server.
// One process serves one storage engine, selected by explicit tag.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"publica/internal/domain/item"
	v1 "publica/internal/infrastructure/http/v1"
	"publica/internal/infrastructure/storage"
	"publica/internal/infrastructure/storage/memory"
	"publica/internal/infrastructure/storage/pebbledb"
	"publica/internal/infrastructure/storage/postgres"
	"publica/internal/infrastructure/storage/sqlite"
	"publica/internal/metadata"
	"publica/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting publica server")

	// --- Model registry ---
	registry := metadata.NewRegistry(metadata.NewAtomSet())
	modelsPath := getEnv("MODELS_PATH", "configs/models.yaml")
	if err := metadata.LoadFile(modelsPath, registry); err != nil {
		log.Fatalw("failed to load model definitions", "path", modelsPath, "error", err)
	}
	log.Infow("model registry initialized", "models", len(registry.List()))

	// --- Storage engine ---
	store, err := openEngine(ctx, storage.EngineTag(getEnv("ENGINE", "memory")))
	if err != nil {
		log.Fatalw("failed to open storage engine", "error", err)
	}
	defer store.Close()
	log.Infow("storage engine ready", "engine", store.Engine())

	// --- Item service ---
	service, err := item.NewService(registry, store, log, item.Config{})
	if err != nil {
		log.Fatalw("failed to build item service", "error", err)
	}
	if err := service.EnsureCollections(ctx); err != nil {
		log.Fatalw("failed to prepare collections", "error", err)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		ItemService: service,
		Registry:    registry,
		Store:       store,
		Logger:      log,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port, "engine", store.Engine())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// openEngine dispatches on the explicit engine tag. An unknown tag is a
// startup error, never a silent fallback.
func openEngine(ctx context.Context, tag storage.EngineTag) (storage.Translator, error) {
	switch tag {
	case storage.EngineMemory:
		return memory.New(), nil
	case storage.EnginePebble:
		return pebbledb.Open(getEnv("PEBBLE_PATH", "data/pebble"), pebbledb.Options{})
	case storage.EngineSQLite:
		return sqlite.Open(getEnv("SQLITE_PATH", "data/publica.db"))
	case storage.EnginePostgres:
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown storage engine %q (known: %v)", tag, storage.Tags())
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
