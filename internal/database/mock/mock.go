// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomasrezac/photo-companion/internal/database"
)

// MockVectorStore is an in-memory implementation of database.VectorWriter
type MockVectorStore struct {
	mu      sync.RWMutex
	vectors map[string]*database.StoredVector

	// Error injection
	GetError         error
	CountError       error
	SaveError        error
	DeleteError      error
	FindSimilarError error
}

// NewMockVectorStore creates a new mock vector store
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		vectors: make(map[string]*database.StoredVector),
	}
}

// Get retrieves a vector by photo UID
func (m *MockVectorStore) Get(ctx context.Context, photoUID string) (*database.StoredVector, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vectors[photoUID], nil
}

// Count returns the total number of vectors
func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors), nil
}

// FindSimilarWithDistance finds vectors within maxDistance, nearest first
func (m *MockVectorStore) FindSimilarWithDistance(ctx context.Context, vector []float32, limit int, maxDistance float64) ([]database.StoredVector, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		vec  database.StoredVector
		dist float64
	}
	var candidates []scored
	for _, v := range m.vectors {
		d := database.CosineDistance(vector, v.Vector)
		if d <= maxDistance {
			candidates = append(candidates, scored{*v, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]database.StoredVector, len(candidates))
	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		results[i] = c.vec
		distances[i] = c.dist
	}
	return results, distances, nil
}

// SaveVector stores a vector, replacing any existing one for the photo
func (m *MockVectorStore) SaveVector(ctx context.Context, v database.StoredVector) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[v.PhotoUID] = &v
	return nil
}

// DeleteVector removes the vector for a photo
func (m *MockVectorStore) DeleteVector(ctx context.Context, photoUID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, photoUID)
	return nil
}

// MockGroupStore is an in-memory implementation of database.GroupWriter
type MockGroupStore struct {
	mu     sync.RWMutex
	groups map[string]*database.DuplicateGroup

	// Error injection
	GetError        error
	UnresolvedError error
	SaveError       error
	UpdateError     error
}

// NewMockGroupStore creates a new mock group store
func NewMockGroupStore() *MockGroupStore {
	return &MockGroupStore{
		groups: make(map[string]*database.DuplicateGroup),
	}
}

// AddGroup seeds the store with a group
func (m *MockGroupStore) AddGroup(g database.DuplicateGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = cloneGroup(&g)
}

// GetGroup retrieves a group by ID
func (m *MockGroupStore) GetGroup(ctx context.Context, id string) (*database.DuplicateGroup, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	return cloneGroup(g), nil
}

// UnresolvedGroups returns unresolved groups ordered by creation date descending
func (m *MockGroupStore) UnresolvedGroups(ctx context.Context) ([]database.DuplicateGroup, error) {
	if m.UnresolvedError != nil {
		return nil, m.UnresolvedError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.DuplicateGroup
	for _, g := range m.groups {
		if !g.Resolved {
			result = append(result, *cloneGroup(g))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// SaveGroup inserts a new group
func (m *MockGroupStore) SaveGroup(ctx context.Context, g *database.DuplicateGroup) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = cloneGroup(g)
	return nil
}

// UpdateGroup replaces an existing group's state
func (m *MockGroupStore) UpdateGroup(ctx context.Context, g *database.DuplicateGroup) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = cloneGroup(g)
	return nil
}

// GroupCount returns the total number of groups, resolved included
func (m *MockGroupStore) GroupCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.groups)
}

func cloneGroup(g *database.DuplicateGroup) *database.DuplicateGroup {
	clone := *g
	clone.Members = append([]string(nil), g.Members...)
	clone.PairScores = make(map[string]float64, len(g.PairScores))
	for k, v := range g.PairScores {
		clone.PairScores[k] = v
	}
	if g.ResolvedAt != nil {
		t := *g.ResolvedAt
		clone.ResolvedAt = &t
	}
	return &clone
}

// MockSurfaceLog is an in-memory implementation of database.SurfaceLog
type MockSurfaceLog struct {
	mu       sync.RWMutex
	surfaced map[string]time.Time

	// Error injection
	LastError error
	MarkError error
}

// NewMockSurfaceLog creates a new mock surface log
func NewMockSurfaceLog() *MockSurfaceLog {
	return &MockSurfaceLog{surfaced: make(map[string]time.Time)}
}

// LastSurfaced returns when the photo was last surfaced, or nil
func (m *MockSurfaceLog) LastSurfaced(ctx context.Context, photoUID string) (*time.Time, error) {
	if m.LastError != nil {
		return nil, m.LastError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.surfaced[photoUID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// MarkSurfaced records a surfacing time
func (m *MockSurfaceLog) MarkSurfaced(ctx context.Context, photoUID string, at time.Time) error {
	if m.MarkError != nil {
		return m.MarkError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surfaced[photoUID] = at
	return nil
}
