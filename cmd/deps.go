package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/database/postgres"
	"github.com/tomasrezac/photo-companion/internal/dupes"
	"github.com/tomasrezac/photo-companion/internal/featureprint"
	"github.com/tomasrezac/photo-companion/internal/library"
)

// vectorCacheSize bounds the in-memory vector cache shared by a scan run.
const vectorCacheSize = 10000

// initPostgres connects to PostgreSQL and applies pending migrations.
func initPostgres(ctx context.Context, cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	pool := postgres.GetGlobalPool()
	if err := pool.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// newLibraryClient connects to the PhotoPrism instance from config.
func newLibraryClient(cfg *config.Config) (*library.Client, error) {
	if cfg.PhotoPrism.URL == "" {
		return nil, errors.New("PHOTOPRISM_URL environment variable is required")
	}
	client, err := library.New(cfg.PhotoPrism.URL, cfg.PhotoPrism.Username, cfg.PhotoPrism.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PhotoPrism: %w", err)
	}
	return client, nil
}

// newCoordinator wires the scan pipeline: PhotoPrism as the image source,
// the embedding server as the extractor, and PostgreSQL for persistence.
func newCoordinator(cfg *config.Config, pool *postgres.Pool, client *library.Client) *dupes.Coordinator {
	extractor := featureprint.NewEmbeddingExtractor(cfg.Embedding.URL, "")
	cache := featureprint.NewVectorCache(vectorCacheSize)
	scanner := dupes.NewScanner(client, extractor, cache)

	vectors := postgres.NewVectorRepository(pool)
	groups := database.NewGroupStore(postgres.NewGroupRepository(pool))

	return dupes.NewCoordinator(client, scanner, vectors, groups, extractor.Model())
}
