//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
)

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(Config{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	store := NewStore(pool)
	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}

	return store, cleanup
}

func TestAnalysisRecords(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("MarkAndRead", func(t *testing.T) {
		records := []catalog.AnalysisRecord{
			{AssetID: "a1", Module: catalog.CategoryBlurry, Timestamp: now},
			{AssetID: "a2", Module: catalog.CategoryBlurry, Timestamp: now},
			{AssetID: "a1", Module: catalog.CategoryExposure, Timestamp: now},
		}
		if err := store.MarkAnalyzed(ctx, records); err != nil {
			t.Fatalf("Failed to mark analyzed: %v", err)
		}

		blurry, err := store.Analyzed(ctx, catalog.CategoryBlurry)
		if err != nil {
			t.Fatalf("Failed to read analyzed: %v", err)
		}
		if len(blurry) != 2 {
			t.Errorf("Expected 2 blurry records, got %d", len(blurry))
		}

		exposure, err := store.Analyzed(ctx, catalog.CategoryExposure)
		if err != nil {
			t.Fatalf("Failed to read analyzed: %v", err)
		}
		if len(exposure) != 1 {
			t.Errorf("Expected 1 exposure record, got %d", len(exposure))
		}
	})

	t.Run("MarkIsIdempotent", func(t *testing.T) {
		records := []catalog.AnalysisRecord{
			{AssetID: "a1", Module: catalog.CategoryBlurry, Timestamp: now.Add(time.Hour)},
		}
		if err := store.MarkAnalyzed(ctx, records); err != nil {
			t.Fatalf("Failed to re-mark analyzed: %v", err)
		}

		blurry, err := store.Analyzed(ctx, catalog.CategoryBlurry)
		if err != nil {
			t.Fatalf("Failed to read analyzed: %v", err)
		}
		if len(blurry) != 2 {
			t.Errorf("Expected 2 blurry records after re-mark, got %d", len(blurry))
		}
		if !blurry["a1"].Equal(now) {
			t.Errorf("Expected original timestamp preserved, got %v", blurry["a1"])
		}
	})

	t.Run("ClearModule", func(t *testing.T) {
		if err := store.ClearAnalyzed(ctx, catalog.CategoryBlurry); err != nil {
			t.Fatalf("Failed to clear: %v", err)
		}
		blurry, _ := store.Analyzed(ctx, catalog.CategoryBlurry)
		if len(blurry) != 0 {
			t.Errorf("Expected 0 blurry records after clear, got %d", len(blurry))
		}
		exposure, _ := store.Analyzed(ctx, catalog.CategoryExposure)
		if len(exposure) != 1 {
			t.Errorf("Clearing blurry should not touch exposure, got %d", len(exposure))
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		if err := store.ClearAllAnalyzed(ctx); err != nil {
			t.Fatalf("Failed to clear all: %v", err)
		}
		exposure, _ := store.Analyzed(ctx, catalog.CategoryExposure)
		if len(exposure) != 0 {
			t.Errorf("Expected 0 records after clear all, got %d", len(exposure))
		}
	})
}

func TestPendingGroups(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	groups := []catalog.PhotoGroup{
		catalog.NewPhotoGroup(catalog.CategoryDuplicates, []catalog.ImageRecord{
			catalog.NewImageRecord("d1"),
			catalog.NewImageRecord("d2"),
		}),
		catalog.NewPhotoGroup(catalog.CategorySimilars, []catalog.ImageRecord{
			catalog.NewImageRecord("s1"),
			catalog.NewImageRecord("s2"),
			catalog.NewImageRecord("s3"),
		}),
	}
	groups[1].Score = 0.12

	t.Run("SaveAndLoad", func(t *testing.T) {
		if err := store.SavePendingGroups(ctx, groups); err != nil {
			t.Fatalf("Failed to save groups: %v", err)
		}

		loaded, err := store.LoadPendingGroups(ctx)
		if err != nil {
			t.Fatalf("Failed to load groups: %v", err)
		}
		if len(loaded) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(loaded))
		}
		if loaded[0].Category != catalog.CategoryDuplicates {
			t.Errorf("Expected duplicates first, got %s", loaded[0].Category)
		}
		if len(loaded[1].Images) != 3 {
			t.Errorf("Expected 3 images in second group, got %d", len(loaded[1].Images))
		}
		if loaded[1].Images[0].AssetID != "s1" {
			t.Errorf("Expected image order preserved, got %s", loaded[1].Images[0].AssetID)
		}
		if loaded[1].Score != 0.12 {
			t.Errorf("Expected score 0.12, got %f", loaded[1].Score)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		if err := store.SavePendingGroups(ctx, groups[:1]); err != nil {
			t.Fatalf("Failed to re-save groups: %v", err)
		}
		loaded, _ := store.LoadPendingGroups(ctx)
		if len(loaded) != 1 {
			t.Errorf("Expected 1 group after replace, got %d", len(loaded))
		}
	})

	t.Run("ClearCategory", func(t *testing.T) {
		if err := store.SavePendingGroups(ctx, groups); err != nil {
			t.Fatalf("Failed to save groups: %v", err)
		}
		if err := store.ClearCategory(ctx, catalog.CategorySimilars); err != nil {
			t.Fatalf("Failed to clear category: %v", err)
		}
		loaded, _ := store.LoadPendingGroups(ctx)
		if len(loaded) != 1 {
			t.Fatalf("Expected 1 group after category clear, got %d", len(loaded))
		}
		if loaded[0].Category != catalog.CategoryDuplicates {
			t.Errorf("Expected duplicates group to survive, got %s", loaded[0].Category)
		}
	})
}

func TestEmbeddings(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	vector := make([]float32, 768)
	for i := range vector {
		vector[i] = float32(i) / 768.0
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		err := store.SaveEmbedding(ctx, cache.StoredEmbedding{
			AssetID: "photo123",
			Vector:  vector,
			Model:   "clip",
			Dim:     768,
		})
		if err != nil {
			t.Fatalf("Failed to save embedding: %v", err)
		}

		got, err := store.Embedding(ctx, "photo123")
		if err != nil {
			t.Fatalf("Failed to get embedding: %v", err)
		}
		if got == nil {
			t.Fatal("Expected embedding, got nil")
		}
		if got.Model != "clip" {
			t.Errorf("Expected model 'clip', got '%s'", got.Model)
		}
		if len(got.Vector) != 768 {
			t.Errorf("Expected 768 dimensions, got %d", len(got.Vector))
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := store.Embedding(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Failed to get embedding: %v", err)
		}
		if got != nil {
			t.Error("Expected nil for missing embedding")
		}
	})

	t.Run("SaveUpserts", func(t *testing.T) {
		err := store.SaveEmbedding(ctx, cache.StoredEmbedding{
			AssetID: "photo123",
			Vector:  vector,
			Model:   "clip-v2",
			Dim:     768,
		})
		if err != nil {
			t.Fatalf("Failed to upsert embedding: %v", err)
		}

		all, err := store.Embeddings(ctx)
		if err != nil {
			t.Fatalf("Failed to list embeddings: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("Expected 1 embedding after upsert, got %d", len(all))
		}
		if all[0].Model != "clip-v2" {
			t.Errorf("Expected updated model 'clip-v2', got '%s'", all[0].Model)
		}
	})
}
