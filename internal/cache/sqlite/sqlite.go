// Package sqlite implements the cache store on a local SQLite database.
// It is the default backend; no server required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
)

// Store persists analysis records, pending groups and embeddings in SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New opens (and if needed creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Current schema version
const schemaVersion = 1

// init creates the database schema.
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analysis_records (
		asset_id TEXT NOT NULL,
		module TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (asset_id, module)
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_module ON analysis_records(module);

	CREATE TABLE IF NOT EXISTS pending_groups (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pending_group_images (
		group_id TEXT NOT NULL,
		image_id TEXT NOT NULL,
		asset_id TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		PRIMARY KEY (group_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_pending_images_group ON pending_group_images(group_id);

	CREATE TABLE IF NOT EXISTS embeddings (
		asset_id TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		dim INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// MarkAnalyzed appends analysis records. INSERT OR IGNORE gives the
// idempotent merge semantics the cache contract requires.
func (s *Store) MarkAnalyzed(ctx context.Context, records []catalog.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO analysis_records (asset_id, module, created_at)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.AssetID, string(rec.Module), rec.Timestamp); err != nil {
			return fmt.Errorf("insert analysis record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis records: %w", err)
	}
	return nil
}

// Analyzed returns the negatives recorded for one module.
func (s *Store) Analyzed(ctx context.Context, module catalog.Category) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, created_at FROM analysis_records WHERE module = ?`, string(module))
	if err != nil {
		return nil, fmt.Errorf("query analysis records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var ts time.Time
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fmt.Errorf("scan analysis record: %w", err)
		}
		out[id] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis records: %w", err)
	}
	return out, nil
}

// ClearAnalyzed removes the negatives for one module.
func (s *Store) ClearAnalyzed(ctx context.Context, module catalog.Category) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_records WHERE module = ?`, string(module)); err != nil {
		return fmt.Errorf("clear analysis records: %w", err)
	}
	return nil
}

// ClearAllAnalyzed removes every module's negatives.
func (s *Store) ClearAllAnalyzed(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_records`); err != nil {
		return fmt.Errorf("clear analysis records: %w", err)
	}
	return nil
}

// SavePendingGroups replaces the persisted pending groups. Only ids are
// stored; images are re-fetched by id on reload.
func (s *Store) SavePendingGroups(ctx context.Context, groups []catalog.PhotoGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_groups`); err != nil {
		return fmt.Errorf("clear pending groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_group_images`); err != nil {
		return fmt.Errorf("clear pending group images: %w", err)
	}

	for gi, g := range groups {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pending_groups (id, category, score, position) VALUES (?, ?, ?, ?)`,
			g.ID, string(g.Category), g.Score, gi)
		if err != nil {
			return fmt.Errorf("insert pending group: %w", err)
		}
		for ii, img := range g.Images {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO pending_group_images (group_id, image_id, asset_id, position) VALUES (?, ?, ?, ?)`,
				g.ID, img.ID, img.AssetID, ii)
			if err != nil {
				return fmt.Errorf("insert pending group image: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pending groups: %w", err)
	}
	return nil
}

// LoadPendingGroups returns the persisted groups in saved order.
func (s *Store) LoadPendingGroups(ctx context.Context) ([]catalog.PhotoGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, score FROM pending_groups ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query pending groups: %w", err)
	}
	defer rows.Close()

	var groups []catalog.PhotoGroup
	for rows.Next() {
		var g catalog.PhotoGroup
		var category string
		if err := rows.Scan(&g.ID, &category, &g.Score); err != nil {
			return nil, fmt.Errorf("scan pending group: %w", err)
		}
		g.Category = catalog.Category(category)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending groups: %w", err)
	}

	for i := range groups {
		imgRows, err := s.db.QueryContext(ctx,
			`SELECT image_id, asset_id FROM pending_group_images WHERE group_id = ? ORDER BY position`,
			groups[i].ID)
		if err != nil {
			return nil, fmt.Errorf("query pending group images: %w", err)
		}
		for imgRows.Next() {
			var rec catalog.ImageRecord
			if err := imgRows.Scan(&rec.ID, &rec.AssetID); err != nil {
				imgRows.Close()
				return nil, fmt.Errorf("scan pending group image: %w", err)
			}
			groups[i].Images = append(groups[i].Images, rec)
		}
		if err := imgRows.Err(); err != nil {
			imgRows.Close()
			return nil, fmt.Errorf("iterate pending group images: %w", err)
		}
		imgRows.Close()
	}

	return groups, nil
}

// ClearCategory removes the pending groups of one category. Other
// categories' pending state stays untouched.
func (s *Store) ClearCategory(ctx context.Context, category catalog.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pending_group_images
		WHERE group_id IN (SELECT id FROM pending_groups WHERE category = ?)
	`, string(category)); err != nil {
		return fmt.Errorf("clear pending group images: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_groups WHERE category = ?`, string(category)); err != nil {
		return fmt.Errorf("clear pending groups: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear category: %w", err)
	}
	return nil
}

// SaveEmbedding upserts one embedding, vector stored as JSON.
func (s *Store) SaveEmbedding(ctx context.Context, emb cache.StoredEmbedding) error {
	data, err := json.Marshal(emb.Vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (asset_id, vector, model, dim, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET vector = excluded.vector,
			model = excluded.model, dim = excluded.dim
	`, emb.AssetID, data, emb.Model, emb.Dim, createdAt)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Embedding returns the stored embedding for an asset, or nil if not found.
func (s *Store) Embedding(ctx context.Context, assetID string) (*cache.StoredEmbedding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT asset_id, vector, model, dim, created_at FROM embeddings WHERE asset_id = ?`, assetID)

	emb, err := scanEmbedding(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// Embeddings returns every stored embedding.
func (s *Store) Embeddings(ctx context.Context) ([]cache.StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, vector, model, dim, created_at FROM embeddings ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []cache.StoredEmbedding
	for rows.Next() {
		emb, err := scanEmbedding(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

func scanEmbedding(scan func(dest ...any) error) (*cache.StoredEmbedding, error) {
	var emb cache.StoredEmbedding
	var data []byte
	if err := scan(&emb.AssetID, &data, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan embedding: %w", err)
	}
	if err := json.Unmarshal(data, &emb.Vector); err != nil {
		return nil, fmt.Errorf("unmarshal embedding vector: %w", err)
	}
	return &emb, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
