package database

import (
	"context"
	"fmt"
	"time"
)

// PersistenceError wraps a storage failure. Unlike per-item extraction
// failures, a persistence failure means scan results may be lost, so it is
// fatal to the scan that triggered it and must reach the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// VectorReader provides read-only access to stored feature vectors
type VectorReader interface {
	// Get retrieves a vector by photo UID, returns nil if not found
	Get(ctx context.Context, photoUID string) (*StoredVector, error)
	// Count returns the total number of vectors stored
	Count(ctx context.Context) (int, error)
	// FindSimilarWithDistance finds similar vectors within maxDistance and returns distances
	FindSimilarWithDistance(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]StoredVector, []float64, error)
}

// VectorWriter provides write access to stored feature vectors
type VectorWriter interface {
	VectorReader

	// SaveVector stores a vector, replacing any previous vector for the photo
	SaveVector(ctx context.Context, v StoredVector) error
	// DeleteVector removes the vector for a photo
	DeleteVector(ctx context.Context, photoUID string) error
}

// GroupReader provides read-only access to duplicate groups
type GroupReader interface {
	// GetGroup retrieves a group by ID, returns nil if not found
	GetGroup(ctx context.Context, id string) (*DuplicateGroup, error)
	// UnresolvedGroups returns all unresolved groups ordered by creation date descending
	UnresolvedGroups(ctx context.Context) ([]DuplicateGroup, error)
}

// GroupWriter provides write access to duplicate groups
type GroupWriter interface {
	GroupReader

	// SaveGroup inserts a new group
	SaveGroup(ctx context.Context, g *DuplicateGroup) error
	// UpdateGroup replaces the members, scores, and resolution state of an existing group
	UpdateGroup(ctx context.Context, g *DuplicateGroup) error
}

// SurfaceLog records when a photo was last surfaced as a memory.
type SurfaceLog interface {
	// LastSurfaced returns when the photo was last shown, or nil if never
	LastSurfaced(ctx context.Context, photoUID string) (*time.Time, error)
	// MarkSurfaced records that the photo was shown at the given time
	MarkSurfaced(ctx context.Context, photoUID string, at time.Time) error
}
