package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
)

// Store implements cache.Store on a PostgreSQL pool.
type Store struct {
	pool *Pool
}

// NewStore wraps a pool into a cache store.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// MarkAnalyzed appends analysis records. ON CONFLICT DO NOTHING gives the
// merge semantics the cache contract requires across restarts.
func (s *Store) MarkAnalyzed(ctx context.Context, records []catalog.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analysis_records (asset_id, module, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id, module) DO NOTHING
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
	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT asset_id, created_at FROM analysis_records WHERE module = $1`, string(module))
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
	if _, err := s.pool.db.ExecContext(ctx,
		`DELETE FROM analysis_records WHERE module = $1`, string(module)); err != nil {
		return fmt.Errorf("clear analysis records: %w", err)
	}
	return nil
}

// ClearAllAnalyzed removes every module's negatives.
func (s *Store) ClearAllAnalyzed(ctx context.Context) error {
	if _, err := s.pool.db.ExecContext(ctx, `DELETE FROM analysis_records`); err != nil {
		return fmt.Errorf("clear analysis records: %w", err)
	}
	return nil
}

// SavePendingGroups replaces the persisted pending groups.
func (s *Store) SavePendingGroups(ctx context.Context, groups []catalog.PhotoGroup) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_groups`); err != nil {
		return fmt.Errorf("clear pending groups: %w", err)
	}

	for gi, g := range groups {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pending_groups (id, category, score, position) VALUES ($1, $2, $3, $4)`,
			g.ID, string(g.Category), g.Score, gi)
		if err != nil {
			return fmt.Errorf("insert pending group: %w", err)
		}
		for ii, img := range g.Images {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO pending_group_images (group_id, image_id, asset_id, position) VALUES ($1, $2, $3, $4)`,
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
	rows, err := s.pool.db.QueryContext(ctx,
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
		imgRows, err := s.pool.db.QueryContext(ctx,
			`SELECT image_id, asset_id FROM pending_group_images WHERE group_id = $1 ORDER BY position`,
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

// ClearCategory removes the pending groups of one category.
func (s *Store) ClearCategory(ctx context.Context, category catalog.Category) error {
	if _, err := s.pool.db.ExecContext(ctx,
		`DELETE FROM pending_groups WHERE category = $1`, string(category)); err != nil {
		return fmt.Errorf("clear pending groups: %w", err)
	}
	return nil
}

// SaveEmbedding upserts one embedding into the pgvector column.
func (s *Store) SaveEmbedding(ctx context.Context, emb cache.StoredEmbedding) error {
	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO embeddings (asset_id, embedding, model, dim, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_id) DO UPDATE SET embedding = EXCLUDED.embedding,
			model = EXCLUDED.model, dim = EXCLUDED.dim
	`, emb.AssetID, pgvector.NewVector(emb.Vector), emb.Model, emb.Dim, createdAt)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Embedding returns the stored embedding for an asset, or nil if not found.
func (s *Store) Embedding(ctx context.Context, assetID string) (*cache.StoredEmbedding, error) {
	var emb cache.StoredEmbedding
	var vec pgvector.Vector

	err := s.pool.db.QueryRowContext(ctx,
		`SELECT asset_id, embedding, model, dim, created_at FROM embeddings WHERE asset_id = $1`,
		assetID).Scan(&emb.AssetID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	emb.Vector = vec.Slice()
	return &emb, nil
}

// Embeddings returns every stored embedding.
func (s *Store) Embeddings(ctx context.Context) ([]cache.StoredEmbedding, error) {
	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT asset_id, embedding, model, dim, created_at FROM embeddings ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []cache.StoredEmbedding
	for rows.Next() {
		var emb cache.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.AssetID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Vector = vec.Slice()
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
