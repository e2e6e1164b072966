package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
	"photosweep/internal/config"
	"photosweep/internal/engine"
	"photosweep/internal/library"
	"photosweep/internal/vision"
)

// testConfig creates a minimal config for testing.
func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			DuplicateThreshold: 0.05,
			SimilarThreshold:   0.35,
			BatchLimit:         50,
			Workers:            2,
			Modules:            []string{"duplicates", "similars", "blurry"},
		},
	}
}

type fakeLibrary struct {
	mu          sync.Mutex
	assets      []library.Asset
	deleteCalls [][]string
	deleteErr   error
}

func (f *fakeLibrary) ListAssets(ctx context.Context) ([]library.Asset, error) {
	return f.assets, nil
}

func (f *fakeLibrary) Image(ctx context.Context, assetID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeLibrary) DeleteAssets(ctx context.Context, assetIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, append([]string(nil), assetIDs...))
	return nil
}

func (f *fakeLibrary) ReplaceWithEdited(ctx context.Context, assetID string, imageData []byte) error {
	return nil
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) ComputeEmbedding(ctx context.Context, imageData []byte) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Model() string { return "fake" }

// testGroup builds a group whose image IDs double as asset IDs.
func testGroup(category catalog.Category, ids ...string) catalog.PhotoGroup {
	images := make([]catalog.ImageRecord, len(ids))
	for i, id := range ids {
		images[i] = catalog.NewImageRecord(id)
	}
	return catalog.NewPhotoGroup(category, images)
}

// holderWithSession builds a session over the given groups and wraps it in a
// holder ready for handler tests.
func holderWithSession(lib *fakeLibrary, groups ...catalog.PhotoGroup) (*SessionHolder, *engine.Session) {
	session := engine.NewSession(groups, lib, cache.New(), nil)
	holder := &SessionHolder{}
	holder.Set(session)
	return holder, session
}

func testDeps(lib *fakeLibrary) Deps {
	return Deps{
		Config:   testConfig(),
		Library:  lib,
		Embedder: &fakeEmbedder{},
		Provider: vision.NewHeuristicProvider(0),
		Cache:    cache.New(),
	}
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, recorder.Code, recorder.Body.String())
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
}
