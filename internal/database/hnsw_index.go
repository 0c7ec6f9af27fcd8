package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW graph tuning. M is the max neighbor count per node; Ml follows the
// standard 1/ln(M) style formula the library documents.
const HNSWMaxNeighbors = 16

// HNSWVectorIndex wraps an in-memory HNSW graph over stored feature vectors,
// keyed by photo UID. It exists to make ad-hoc similarity lookups fast when
// the library is large; the authoritative store remains PostgreSQL.
type HNSWVectorIndex struct {
	graph   *hnsw.Graph[string]
	idToVec map[string]*StoredVector
	mu      sync.RWMutex
}

// NewHNSWVectorIndex creates a new empty index.
func NewHNSWVectorIndex() *HNSWVectorIndex {
	return &HNSWVectorIndex{
		idToVec: make(map[string]*StoredVector),
	}
}

// BuildFromVectors rebuilds the index from a slice of stored vectors.
func (h *HNSWVectorIndex) BuildFromVectors(vectors []StoredVector) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(vectors) == 0 {
		h.graph = nil
		h.idToVec = make(map[string]*StoredVector)
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	h.idToVec = make(map[string]*StoredVector, len(vectors))

	for i := range vectors {
		v := &vectors[i]
		if len(v.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(v.PhotoUID, v.Vector))
		h.idToVec[v.PhotoUID] = v
	}

	h.graph = g
	return nil
}

// Add inserts or replaces one vector in the index.
func (h *HNSWVectorIndex) Add(v StoredVector) {
	if len(v.Vector) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		g := hnsw.NewGraph[string]()
		g.M = HNSWMaxNeighbors
		g.Ml = 1.0 / float64(HNSWMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		h.graph = g
	}

	h.graph.Add(hnsw.MakeNode(v.PhotoUID, v.Vector))
	h.idToVec[v.PhotoUID] = &v
}

// Search returns up to k nearest photo UIDs and their cosine distances.
func (h *HNSWVectorIndex) Search(query []float32, k int) ([]string, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k)

	ids := make([]string, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.Key)
		if v, ok := h.idToVec[n.Key]; ok {
			distances = append(distances, CosineDistance(query, v.Vector))
		} else {
			distances = append(distances, 2.0)
		}
	}

	return ids, distances, nil
}

// GetVector returns the stored vector for a photo UID, or nil when absent.
func (h *HNSWVectorIndex) GetVector(photoUID string) *StoredVector {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToVec[photoUID]
}

// Len returns the number of indexed vectors.
func (h *HNSWVectorIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToVec)
}
