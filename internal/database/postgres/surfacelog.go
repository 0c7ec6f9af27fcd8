package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SurfaceLogRepository records when a photo was last shown as a memory.
type SurfaceLogRepository struct {
	pool *Pool
}

// NewSurfaceLogRepository creates a new surface log repository
func NewSurfaceLogRepository(pool *Pool) *SurfaceLogRepository {
	return &SurfaceLogRepository{pool: pool}
}

// LastSurfaced returns when the photo was last surfaced, nil if never
func (r *SurfaceLogRepository) LastSurfaced(ctx context.Context, photoUID string) (*time.Time, error) {
	var surfacedAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT surfaced_at FROM memories_surfaced WHERE photo_uid = $1
	`, photoUID).Scan(&surfacedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query surface log: %w", err)
	}
	return &surfacedAt, nil
}

// MarkSurfaced records that the photo was surfaced at the given time
func (r *SurfaceLogRepository) MarkSurfaced(ctx context.Context, photoUID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO memories_surfaced (photo_uid, surfaced_at)
		VALUES ($1, $2)
		ON CONFLICT (photo_uid) DO UPDATE SET surfaced_at = EXCLUDED.surfaced_at
	`, photoUID, at)
	if err != nil {
		return fmt.Errorf("mark surfaced: %w", err)
	}
	return nil
}
