package database

import (
	"strings"
	"time"
)

// StoredVector represents a feature vector persisted for one photo.
// ContentHash is the file hash at extraction time; a changed hash means the
// stored vector is stale and the photo must be re-extracted.
type StoredVector struct {
	PhotoUID    string
	Vector      []float32
	Model       string
	Dim         int
	ContentHash string
	CreatedAt   time.Time
}

// PairKey builds the unordered pair key for two photo UIDs. Both orderings of
// the same pair map to the same key.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// SplitPairKey returns the two photo UIDs of a pair key.
func SplitPairKey(key string) (string, string) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}

// DuplicateGroup is a persisted cluster of visually similar photos.
// Members keeps scan insertion order; the first member is the representative
// the review UI recommends keeping. Resolved groups are terminal: they are
// excluded from unresolved queries but retained for audit.
type DuplicateGroup struct {
	ID         string
	CreatedAt  time.Time
	Resolved   bool
	ResolvedAt *time.Time
	Members    []string
	PairScores map[string]float64 // pair key -> similarity (1 - cosine distance)
}

// AverageSimilarity returns the arithmetic mean of the stored pairwise
// similarity scores, or 0 for a group without scores.
func (g *DuplicateGroup) AverageSimilarity() float64 {
	if len(g.PairScores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range g.PairScores {
		sum += s
	}
	return sum / float64(len(g.PairScores))
}

// Representative returns the member recommended to keep: the first asset
// inserted by scan order. Empty string for an empty group.
func (g *DuplicateGroup) Representative() string {
	if len(g.Members) == 0 {
		return ""
	}
	return g.Members[0]
}

// HasMember reports whether the group contains the given photo.
func (g *DuplicateGroup) HasMember(photoUID string) bool {
	for _, m := range g.Members {
		if m == photoUID {
			return true
		}
	}
	return false
}
