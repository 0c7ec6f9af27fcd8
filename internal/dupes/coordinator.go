package dupes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/featureprint"
	"github.com/tomasrezac/photo-companion/internal/library"
)

// ErrScanInFlight is returned when a scan is requested while another is running.
var ErrScanInFlight = errors.New("a scan is already running")

// incrementalNeighborLimit caps how many stored vectors an incremental
// scan compares each changed photo against.
const incrementalNeighborLimit = 20

// PhotoLister lists the photos of the library.
type PhotoLister interface {
	AllPhotos(ctx context.Context) ([]library.Photo, error)
}

// ScanSummary reports what a scan did.
type ScanSummary struct {
	PhotosSeen        int
	Reused            int // vectors reused from storage, content unchanged
	Extracted         int
	Skipped           []SkippedPhoto
	ComparisonErrors  int
	ClustersFound     int
	GroupsCreated     int
	GroupsMerged      int
	ClustersDiscarded int
	Cancelled         bool
	Duration          time.Duration
}

// Coordinator runs scans end to end: listing photos, extracting and
// persisting vectors, clustering, and saving duplicate groups.
// At most one scan runs at a time.
type Coordinator struct {
	photos  PhotoLister
	scanner *Scanner
	vectors database.VectorWriter
	groups  *database.GroupStore
	model   string

	mu      sync.Mutex
	running bool
}

// NewCoordinator creates a coordinator. The model name is recorded on
// every stored vector so mixed-model vectors can be told apart.
func NewCoordinator(photos PhotoLister, scanner *Scanner, vectors database.VectorWriter, groups *database.GroupStore, model string) *Coordinator {
	return &Coordinator{
		photos:  photos,
		scanner: scanner,
		vectors: vectors,
		groups:  groups,
		model:   model,
	}
}

// begin claims the single scan slot.
func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrScanInFlight
	}
	c.running = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Running reports whether a scan is currently in progress.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// FullScan scans the whole library. Photos whose stored vector matches
// their current content hash are not re-extracted.
func (c *Coordinator) FullScan(ctx context.Context, opts ScanOptions) (*ScanSummary, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	start := time.Now()
	summary := &ScanSummary{}

	photos, err := c.photos.AllPhotos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	// Stable UID order so repeated scans visit photos the same way
	sort.Slice(photos, func(i, j int) bool { return photos[i].UID < photos[j].UID })
	summary.PhotosSeen = len(photos)

	present := make(map[string]bool, len(photos))
	allVectors := make(map[string]*featureprint.FeatureVector, len(photos))
	var toExtract []PhotoRef
	hashes := make(map[string]string, len(photos))

	for _, p := range photos {
		present[p.UID] = true
		hashes[p.UID] = p.Hash

		stored, err := c.vectors.Get(ctx, p.UID)
		if err != nil {
			return nil, err
		}
		if stored != nil && stored.ContentHash == p.Hash && len(stored.Vector) > 0 {
			allVectors[p.UID] = &featureprint.FeatureVector{Values: stored.Vector, Dim: len(stored.Vector)}
			summary.Reused++
			continue
		}
		toExtract = append(toExtract, PhotoRef{UID: p.UID, ContentHash: p.Hash})
	}

	ext, err := c.scanner.Extract(ctx, toExtract, opts)
	if err != nil {
		return nil, err
	}
	summary.Skipped = ext.Skipped
	summary.Cancelled = ext.Cancelled

	for uid, vec := range ext.Vectors {
		if err := c.saveVector(ctx, uid, hashes[uid], vec); err != nil {
			return nil, err
		}
		allVectors[uid] = vec
		summary.Extracted++
	}

	clusterRes := c.scanner.Cluster(ctx, allVectors, opts)
	summary.ComparisonErrors = clusterRes.ComparisonErrors
	summary.ClustersFound = len(clusterRes.Clusters)
	if clusterRes.Cancelled {
		summary.Cancelled = true
	}

	outcome, err := c.groups.PersistClusters(ctx, toClusterInputs(clusterRes.Clusters), func(uid string) bool {
		return present[uid]
	})
	if err != nil {
		return nil, err
	}
	summary.GroupsCreated = outcome.Created
	summary.GroupsMerged = outcome.Merged
	summary.ClustersDiscarded = outcome.Discarded

	summary.Duration = time.Since(start)
	return summary, nil
}

// IncrementalScan processes photos changed since the last run plus
// deletions. Changed photos are compared against stored vectors instead
// of re-clustering the whole library.
func (c *Coordinator) IncrementalScan(ctx context.Context, changed []PhotoRef, deleted []string, opts ScanOptions) (*ScanSummary, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	start := time.Now()
	summary := &ScanSummary{PhotosSeen: len(changed)}

	deletedSet := make(map[string]bool, len(deleted))
	for _, uid := range deleted {
		deletedSet[uid] = true
	}

	if err := c.pruneDeleted(ctx, deleted); err != nil {
		return nil, err
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i].UID < changed[j].UID })

	hashes := make(map[string]string, len(changed))
	for _, p := range changed {
		hashes[p.UID] = p.ContentHash
	}

	ext, err := c.scanner.Extract(ctx, changed, opts)
	if err != nil {
		return nil, err
	}
	summary.Skipped = ext.Skipped
	summary.Cancelled = ext.Cancelled

	var clusters []Cluster
	changedUIDs := make([]string, 0, len(ext.Vectors))
	for uid := range ext.Vectors {
		changedUIDs = append(changedUIDs, uid)
	}
	sort.Strings(changedUIDs)

	for _, uid := range changedUIDs {
		vec := ext.Vectors[uid]
		if err := c.saveVector(ctx, uid, hashes[uid], vec); err != nil {
			return nil, err
		}
		summary.Extracted++

		cluster, err := c.matchStored(ctx, uid, vec, opts)
		if err != nil {
			return nil, err
		}
		if cluster != nil {
			clusters = append(clusters, *cluster)
		}
	}
	summary.ClustersFound = len(clusters)

	outcome, err := c.groups.PersistClusters(ctx, toClusterInputs(clusters), func(uid string) bool {
		return !deletedSet[uid]
	})
	if err != nil {
		return nil, err
	}
	summary.GroupsCreated = outcome.Created
	summary.GroupsMerged = outcome.Merged
	summary.ClustersDiscarded = outcome.Discarded

	summary.Duration = time.Since(start)
	return summary, nil
}

// matchStored compares one changed photo against stored vectors and
// builds a cluster from the neighbors under the threshold. Returns nil
// when the photo has no neighbors.
func (c *Coordinator) matchStored(ctx context.Context, uid string, vec *featureprint.FeatureVector, opts ScanOptions) (*Cluster, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = config.DefaultSimilarityThreshold
	}

	neighbors, distances, err := c.vectors.FindSimilarWithDistance(ctx, vec.Values, incrementalNeighborLimit, threshold)
	if err != nil {
		return nil, err
	}

	cluster := Cluster{
		Members:    []string{uid},
		PairScores: make(map[string]float64),
	}
	for i, n := range neighbors {
		if n.PhotoUID == uid {
			continue
		}
		if distances[i] >= threshold {
			continue
		}
		cluster.Members = append(cluster.Members, n.PhotoUID)
		cluster.PairScores[database.PairKey(uid, n.PhotoUID)] = 1 - distances[i]
	}

	if len(cluster.Members) < 2 {
		return nil, nil
	}
	return &cluster, nil
}

// pruneDeleted drops vectors and group memberships of deleted photos.
func (c *Coordinator) pruneDeleted(ctx context.Context, deleted []string) error {
	if len(deleted) == 0 {
		return nil
	}

	for _, uid := range deleted {
		if err := c.vectors.DeleteVector(ctx, uid); err != nil {
			return err
		}
	}

	groups, err := c.groups.UnresolvedGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		for _, uid := range deleted {
			if !g.HasMember(uid) {
				continue
			}
			if err := c.groups.RemoveMember(ctx, g.ID, uid); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator) saveVector(ctx context.Context, uid, contentHash string, vec *featureprint.FeatureVector) error {
	return c.vectors.SaveVector(ctx, database.StoredVector{
		PhotoUID:    uid,
		Vector:      vec.Values,
		Model:       c.model,
		Dim:         vec.Dim,
		ContentHash: contentHash,
	})
}

func toClusterInputs(clusters []Cluster) []database.ClusterInput {
	inputs := make([]database.ClusterInput, 0, len(clusters))
	for _, cl := range clusters {
		inputs = append(inputs, database.ClusterInput{
			Members:    cl.Members,
			PairScores: cl.PairScores,
		})
	}
	return inputs
}
