package cmd

import (
	"context"
	"errors"
	"fmt"

	"photosweep/internal/cache"
	"photosweep/internal/cache/postgres"
	"photosweep/internal/cache/sqlite"
	"photosweep/internal/config"
	"photosweep/internal/library"
	"photosweep/internal/library/local"
	"photosweep/internal/library/photoprism"
	"photosweep/internal/vision"
)

// buildLibrary picks the photo backend: PhotoPrism when configured,
// otherwise a local directory. The --library flag overrides LIBRARY_PATH.
func buildLibrary(ctx context.Context, cfg *config.Config, dirFlag string) (library.Library, error) {
	if cfg.PhotoPrism.URL != "" {
		fmt.Println("Connecting to PhotoPrism...")
		client, err := photoprism.New(ctx, cfg.PhotoPrism.URL, cfg.PhotoPrism.Username, cfg.PhotoPrism.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PhotoPrism: %w", err)
		}
		if cfg.PhotoPrism.DatabaseURL != "" {
			bursts, err := photoprism.NewBurstReader(cfg.PhotoPrism.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to the PhotoPrism database: %w", err)
			}
			client.UseBurstDB(bursts)
		}
		return client, nil
	}

	dir := dirFlag
	if dir == "" {
		dir = cfg.Library.Path
	}
	if dir == "" {
		return nil, errors.New("no library configured: set PHOTOPRISM_URL or LIBRARY_PATH (or pass --library)")
	}
	return local.New(dir)
}

// buildStore opens the durable cache backend: PostgreSQL when DATABASE_URL
// is set, SQLite otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Database.URL != "" {
		fmt.Println("Connecting to PostgreSQL...")
		pool, err := postgres.NewPool(postgres.Config{
			URL:          cfg.Database.URL,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewStore(pool), nil
	}
	return sqlite.New(cfg.Database.SQLitePath)
}

// buildProvider selects the detector backend per the --provider flag.
func buildProvider(ctx context.Context, cfg *config.Config, name string) (vision.Provider, error) {
	switch name {
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required for --provider openai")
		}
		return vision.NewOpenAIProvider(cfg.OpenAI.Token), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required for --provider gemini")
		}
		return vision.NewGeminiProvider(ctx, cfg.Gemini.APIKey)
	case "", "heuristic":
		return vision.NewHeuristicProvider(cfg.Analysis.BlurThreshold), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (use heuristic, openai or gemini)", name)
	}
}

func buildEmbedder(cfg *config.Config) vision.Embedder {
	return vision.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Model)
}
