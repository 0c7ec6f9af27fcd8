package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"
	"github.com/tomasrezac/photo-companion/internal/database"
)

// VectorRepository provides PostgreSQL-backed feature vector storage with an
// optional in-memory HNSW index for fast similarity lookups.
type VectorRepository struct {
	pool        *Pool
	hnswIndex   *database.HNSWVectorIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewVectorRepository creates a new PostgreSQL vector repository
func NewVectorRepository(pool *Pool) *VectorRepository {
	return &VectorRepository{pool: pool}
}

// Get retrieves a vector by photo UID, returns nil if not found
func (r *VectorRepository) Get(ctx context.Context, photoUID string) (*database.StoredVector, error) {
	query := `
		SELECT photo_uid, embedding, model, dim, content_hash, created_at
		FROM vectors
		WHERE photo_uid = $1
	`

	var v database.StoredVector
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, photoUID).Scan(
		&v.PhotoUID,
		&vec,
		&v.Model,
		&v.Dim,
		&v.ContentHash,
		&v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query vector: %w", err)
	}

	v.Vector = vec.Slice()
	return &v, nil
}

// Count returns the total number of vectors stored
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM vectors").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return count, nil
}

// FindSimilarWithDistance finds vectors within maxDistance using cosine
// distance, nearest first. Uses the in-memory HNSW index when enabled,
// otherwise pgvector's <=> operator.
func (r *VectorRepository) FindSimilarWithDistance(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]database.StoredVector, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		return r.findSimilarHNSW(vector, limit, maxDistance)
	}
	return r.findSimilarPostgres(ctx, vector, limit, maxDistance)
}

func (r *VectorRepository) findSimilarHNSW(vector []float32, limit int, maxDistance float64) ([]database.StoredVector, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	ids, dists, err := r.hnswIndex.Search(vector, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	var results []database.StoredVector
	var distances []float64
	for i, id := range ids {
		if dists[i] > maxDistance {
			continue
		}
		if v := r.hnswIndex.GetVector(id); v != nil {
			results = append(results, *v)
			distances = append(distances, dists[i])
		}
	}
	return results, distances, nil
}

func (r *VectorRepository) findSimilarPostgres(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]database.StoredVector, []float64, error) {
	query := `
		SELECT photo_uid, embedding, model, dim, content_hash, created_at,
		       embedding <=> $1::vector AS distance
		FROM vectors
		WHERE embedding <=> $1::vector <= $2
		ORDER BY distance
		LIMIT $3
	`

	vec := pgvector.NewVector(vector)
	rows, err := r.pool.Query(ctx, query, vec, maxDistance, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar vectors: %w", err)
	}
	defer rows.Close()

	var results []database.StoredVector
	var distances []float64
	for rows.Next() {
		var v database.StoredVector
		var embedded pgvector.Vector
		var distance float64
		if err := rows.Scan(&v.PhotoUID, &embedded, &v.Model, &v.Dim, &v.ContentHash, &v.CreatedAt, &distance); err != nil {
			return nil, nil, fmt.Errorf("scan vector row: %w", err)
		}
		v.Vector = embedded.Slice()
		results = append(results, v)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate vector rows: %w", err)
	}

	return results, distances, nil
}

// SaveVector stores a vector, replacing any previous vector for the photo
func (r *VectorRepository) SaveVector(ctx context.Context, v database.StoredVector) error {
	query := `
		INSERT INTO vectors (photo_uid, embedding, model, dim, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (photo_uid) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			content_hash = EXCLUDED.content_hash,
			created_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, v.PhotoUID, pgvector.NewVector(v.Vector), v.Model, v.Dim, v.ContentHash)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}

	r.hnswMu.Lock()
	if r.hnswEnabled && r.hnswIndex != nil {
		r.hnswIndex.Add(v)
	}
	r.hnswMu.Unlock()

	return nil
}

// DeleteVector removes the vector for a photo
func (r *VectorRepository) DeleteVector(ctx context.Context, photoUID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM vectors WHERE photo_uid = $1", photoUID)
	if err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	return nil
}

// EnableHNSW loads all stored vectors and builds the in-memory HNSW index.
// Subsequent similarity lookups run against the index instead of pgvector.
func (r *VectorRepository) EnableHNSW(ctx context.Context) error {
	rows, err := r.pool.Query(ctx, `
		SELECT photo_uid, embedding, model, dim, content_hash, created_at
		FROM vectors
	`)
	if err != nil {
		return fmt.Errorf("load vectors for HNSW: %w", err)
	}
	defer rows.Close()

	var vectors []database.StoredVector
	for rows.Next() {
		var v database.StoredVector
		var vec pgvector.Vector
		if err := rows.Scan(&v.PhotoUID, &vec, &v.Model, &v.Dim, &v.ContentHash, &v.CreatedAt); err != nil {
			return fmt.Errorf("scan vector row: %w", err)
		}
		v.Vector = vec.Slice()
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vector rows: %w", err)
	}

	index := database.NewHNSWVectorIndex()
	if err := index.BuildFromVectors(vectors); err != nil {
		return fmt.Errorf("build HNSW index: %w", err)
	}

	r.hnswMu.Lock()
	r.hnswIndex = index
	r.hnswEnabled = true
	r.hnswMu.Unlock()

	return nil
}

// HNSWCount returns the number of vectors in the HNSW index, 0 when disabled.
func (r *VectorRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Len()
}
