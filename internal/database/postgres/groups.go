package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/tomasrezac/photo-companion/internal/database"
)

// GroupRepository provides PostgreSQL-backed duplicate group storage.
// Members are stored with an explicit position so the scan insertion order
// (and with it the representative) survives round trips.
type GroupRepository struct {
	pool *Pool
}

// NewGroupRepository creates a new PostgreSQL group repository
func NewGroupRepository(pool *Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// GetGroup retrieves a group by ID, returns nil if not found
func (r *GroupRepository) GetGroup(ctx context.Context, id string) (*database.DuplicateGroup, error) {
	var g database.DuplicateGroup
	err := r.pool.QueryRow(ctx, `
		SELECT id, created_at, resolved, resolved_at
		FROM duplicate_groups
		WHERE id = $1
	`, id).Scan(&g.ID, &g.CreatedAt, &g.Resolved, &g.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query group: %w", err)
	}

	if err := r.loadGroupDetails(ctx, []*database.DuplicateGroup{&g}); err != nil {
		return nil, err
	}
	return &g, nil
}

// UnresolvedGroups returns all unresolved groups ordered by creation date descending
func (r *GroupRepository) UnresolvedGroups(ctx context.Context) ([]database.DuplicateGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, created_at, resolved, resolved_at
		FROM duplicate_groups
		WHERE NOT resolved
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query unresolved groups: %w", err)
	}
	defer rows.Close()

	var groups []database.DuplicateGroup
	for rows.Next() {
		var g database.DuplicateGroup
		if err := rows.Scan(&g.ID, &g.CreatedAt, &g.Resolved, &g.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}

	refs := make([]*database.DuplicateGroup, len(groups))
	for i := range groups {
		refs[i] = &groups[i]
	}
	if err := r.loadGroupDetails(ctx, refs); err != nil {
		return nil, err
	}
	return groups, nil
}

// loadGroupDetails fills members and pair scores for the given groups.
func (r *GroupRepository) loadGroupDetails(ctx context.Context, groups []*database.DuplicateGroup) error {
	if len(groups) == 0 {
		return nil
	}

	byID := make(map[string]*database.DuplicateGroup, len(groups))
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		g.PairScores = make(map[string]float64)
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}

	memberRows, err := r.pool.Query(ctx, `
		SELECT group_id, photo_uid
		FROM duplicate_group_members
		WHERE group_id = ANY($1)
		ORDER BY group_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query group members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var groupID, photoUID string
		if err := memberRows.Scan(&groupID, &photoUID); err != nil {
			return fmt.Errorf("scan member row: %w", err)
		}
		if g, ok := byID[groupID]; ok {
			g.Members = append(g.Members, photoUID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return fmt.Errorf("iterate member rows: %w", err)
	}

	scoreRows, err := r.pool.Query(ctx, `
		SELECT group_id, pair_key, similarity
		FROM duplicate_group_scores
		WHERE group_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query group scores: %w", err)
	}
	defer scoreRows.Close()

	for scoreRows.Next() {
		var groupID, pairKey string
		var similarity float64
		if err := scoreRows.Scan(&groupID, &pairKey, &similarity); err != nil {
			return fmt.Errorf("scan score row: %w", err)
		}
		if g, ok := byID[groupID]; ok {
			g.PairScores[pairKey] = similarity
		}
	}
	if err := scoreRows.Err(); err != nil {
		return fmt.Errorf("iterate score rows: %w", err)
	}

	return nil
}

// SaveGroup inserts a new group with its members and scores
func (r *GroupRepository) SaveGroup(ctx context.Context, g *database.DuplicateGroup) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO duplicate_groups (id, created_at, resolved, resolved_at)
		VALUES ($1, $2, $3, $4)
	`, g.ID, g.CreatedAt, g.Resolved, g.ResolvedAt); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if err := insertDetails(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group insert: %w", err)
	}
	return nil
}

// UpdateGroup replaces an existing group's members, scores, and resolution state
func (r *GroupRepository) UpdateGroup(ctx context.Context, g *database.DuplicateGroup) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE duplicate_groups
		SET resolved = $2, resolved_at = $3
		WHERE id = $1
	`, g.ID, g.Resolved, g.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("group %s not found", g.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM duplicate_group_members WHERE group_id = $1", g.ID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM duplicate_group_scores WHERE group_id = $1", g.ID); err != nil {
		return fmt.Errorf("clear group scores: %w", err)
	}

	if err := insertDetails(ctx, tx, g); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group update: %w", err)
	}
	return nil
}

func insertDetails(ctx context.Context, tx *sql.Tx, g *database.DuplicateGroup) error {
	for position, photoUID := range g.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO duplicate_group_members (group_id, photo_uid, position)
			VALUES ($1, $2, $3)
		`, g.ID, photoUID, position); err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}
	for pairKey, similarity := range g.PairScores {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO duplicate_group_scores (group_id, pair_key, similarity)
			VALUES ($1, $2, $3)
		`, g.ID, pairKey, similarity); err != nil {
			return fmt.Errorf("insert group score: %w", err)
		}
	}
	return nil
}
