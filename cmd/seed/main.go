// Package main provides a CLI tool for seeding a storage engine with
// synthetic person items, for demos and manual pagination testing.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"publica/internal/domain/item"
	"publica/internal/infrastructure/storage"
	"publica/internal/infrastructure/storage/memory"
	"publica/internal/infrastructure/storage/pebbledb"
	"publica/internal/infrastructure/storage/postgres"
	"publica/internal/infrastructure/storage/sqlite"
	"publica/internal/metadata"
	"publica/pkg/logger"
)

const seedCount = 1000

var (
	firstNames  = []string{"Anna", "Bram", "Carla", "Daan", "Eva", "Finn", "Greet", "Hugo", "Iris", "Joost", "Kim", "Lars", "Mara", "Nils", "Olga", "Pim"}
	lastNames   = []string{"Jansen", "de Vries", "Bakker", "Visser", "Smit", "Meijer", "Mulder", "Bos", "Peters", "Hendriks"}
	birthplaces = []string{"Waspik", "Amsterdam", "Rotterdam", "Utrecht", "Eindhoven", "Groningen", "Tilburg", "Breda"}
	tags        = []string{"member", "donor", "volunteer", "alumnus", "staff"}
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	registry := metadata.NewRegistry(metadata.NewAtomSet())
	modelsPath := getEnv("MODELS_PATH", "configs/models.yaml")
	if err := metadata.LoadFile(modelsPath, registry); err != nil {
		log.Fatalw("failed to load model definitions", "path", modelsPath, "error", err)
	}
	if _, ok := registry.Get("person"); !ok {
		log.Fatal("model definitions do not declare a person model")
	}

	store, err := openEngine(ctx, storage.EngineTag(getEnv("ENGINE", "memory")))
	if err != nil {
		log.Fatalw("failed to open storage engine", "error", err)
	}
	defer store.Close()

	service, err := item.NewService(registry, store, log, item.Config{})
	if err != nil {
		log.Fatalw("failed to build item service", "error", err)
	}
	if err := service.EnsureCollections(ctx); err != nil {
		log.Fatalw("failed to prepare collections", "error", err)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < seedCount; i++ {
		doc := map[string]any{
			"name":       firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))],
			"email":      fmt.Sprintf("person%04d@example.org", i),
			"birthplace": birthplaces[rng.Intn(len(birthplaces))],
			"birthdate":  fmt.Sprintf("%d-%02d-%02d", 1950+rng.Intn(60), 1+rng.Intn(12), 1+rng.Intn(28)),
			"tags":       []any{tags[rng.Intn(len(tags))]},
		}
		if _, err := service.Create(ctx, "person", doc); err != nil {
			log.Fatalw("failed to seed person", "index", i, "error", err)
		}
	}

	log.Infow("seeding completed successfully", "engine", store.Engine(), "persons", seedCount)
}

func openEngine(ctx context.Context, tag storage.EngineTag) (storage.Translator, error) {
	switch tag {
	case storage.EngineMemory:
		return memory.New(), nil
	case storage.EnginePebble:
		return pebbledb.Open(getEnv("PEBBLE_PATH", "data/pebble"), pebbledb.Options{})
	case storage.EngineSQLite:
		return sqlite.Open(getEnv("SQLITE_PATH", "data/publica.db"))
	case storage.EnginePostgres:
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(os.Getenv("DATABASE_URL")))
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
