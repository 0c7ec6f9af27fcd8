// Package dupes finds near-duplicate photos. A scan extracts a feature
// vector per photo, then clusters photos whose vectors fall within a
// distance threshold of a seed photo.
package dupes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/featureprint"
)

// PhotoRef identifies a photo to scan. ContentHash changes when the
// underlying file changes, which invalidates cached vectors.
type PhotoRef struct {
	UID         string
	ContentHash string
}

// ImageSource downloads primary file content for a photo.
type ImageSource interface {
	Download(ctx context.Context, photoUID string) ([]byte, string, error)
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase    string // "extracting", "comparing"
	Current  int
	Total    int
	PhotoUID string
	Message  string
}

// ScanOptions control a single scan run.
type ScanOptions struct {
	Threshold   float64            // max vector distance for two photos to count as duplicates
	Concurrency int                // parallel extractions
	OnProgress  func(ProgressInfo) // optional progress callback
}

// SkippedPhoto records a photo that could not be processed and why.
type SkippedPhoto struct {
	UID    string
	Reason string
}

// Cluster is a set of photos judged duplicates of a common seed.
// Members keeps insertion order: the seed first, then matches in scan order.
type Cluster struct {
	Members    []string
	PairScores map[string]float64
}

// ExtractResult is the outcome of the extraction phase.
type ExtractResult struct {
	Vectors   map[string]*featureprint.FeatureVector
	Skipped   []SkippedPhoto
	Cancelled bool
}

// ClusterResult is the outcome of the comparison phase.
type ClusterResult struct {
	Clusters         []Cluster
	ComparisonErrors int // vector pairs that could not be compared, treated as non-duplicates
	Cancelled        bool
}

// Scanner runs the extraction and comparison phases of a duplicate scan.
type Scanner struct {
	source    ImageSource
	extractor featureprint.Extractor
	cache     *featureprint.VectorCache
}

// NewScanner creates a scanner. The cache is optional.
func NewScanner(source ImageSource, extractor featureprint.Extractor, cache *featureprint.VectorCache) *Scanner {
	return &Scanner{
		source:    source,
		extractor: extractor,
		cache:     cache,
	}
}

// extractOutcome holds the result of extracting a single photo
type extractOutcome struct {
	index  int
	vector *featureprint.FeatureVector
	err    error
}

// Extract computes feature vectors for the given photos with bounded
// concurrency. Per-photo failures are recorded and the run continues.
// A cancelled context stops dispatching new photos; photos already being
// processed finish normally.
func (s *Scanner) Extract(ctx context.Context, photos []PhotoRef, opts ScanOptions) (*ExtractResult, error) {
	result := &ExtractResult{
		Vectors: make(map[string]*featureprint.FeatureVector, len(photos)),
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = config.DefaultMaxConcurrentExtractions
	}

	resultsChan := make(chan extractOutcome, len(photos))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var processedCount int
	var progressMu sync.Mutex

	reportProgress := func(photoUID string) {
		progressMu.Lock()
		processedCount++
		current := processedCount
		progressMu.Unlock()
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{
				Phase:    "extracting",
				Current:  current,
				Total:    len(photos),
				PhotoUID: photoUID,
			})
		}
	}

	for i := range photos {
		wg.Add(1)
		go func(idx int, p PhotoRef) {
			defer wg.Done()

			// Acquire semaphore
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			// Check if context is cancelled before starting new work
			if ctx.Err() != nil {
				resultsChan <- extractOutcome{index: idx, err: ctx.Err()}
				reportProgress(p.UID)
				return
			}

			if s.cache != nil {
				if vec := s.cache.Get(featureprint.CacheKey(p.UID, p.ContentHash)); vec != nil {
					resultsChan <- extractOutcome{index: idx, vector: vec}
					reportProgress(p.UID)
					return
				}
			}

			vector, err := s.extractOne(ctx, p)
			if err != nil {
				resultsChan <- extractOutcome{index: idx, err: err}
				reportProgress(p.UID)
				return
			}

			if s.cache != nil {
				s.cache.Put(featureprint.CacheKey(p.UID, p.ContentHash), vector)
			}
			resultsChan <- extractOutcome{index: idx, vector: vector}
			reportProgress(p.UID)
		}(i, photos[i])
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results maintaining input order
	outcomes := make([]*extractOutcome, len(photos))
	for r := range resultsChan {
		outcomes[r.index] = &r
	}

	for i, o := range outcomes {
		uid := photos[i].UID
		if o == nil {
			result.Skipped = append(result.Skipped, SkippedPhoto{UID: uid, Reason: "no extraction result"})
			continue
		}
		if o.err != nil {
			if errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded) {
				result.Cancelled = true
				result.Skipped = append(result.Skipped, SkippedPhoto{UID: uid, Reason: "scan cancelled"})
			} else {
				result.Skipped = append(result.Skipped, SkippedPhoto{UID: uid, Reason: o.err.Error()})
			}
			continue
		}
		result.Vectors[uid] = o.vector
	}

	return result, nil
}

// extractOne downloads, downscales, and extracts a single photo.
func (s *Scanner) extractOne(ctx context.Context, p PhotoRef) (*featureprint.FeatureVector, error) {
	imageData, _, err := s.source.Download(ctx, p.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to download photo %s: %w", p.UID, err)
	}

	scaled, err := featureprint.Downscale(imageData, featureprint.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare photo %s: %w", p.UID, err)
	}

	vector, err := s.extractor.Extract(ctx, scaled)
	if err != nil {
		return nil, fmt.Errorf("failed to extract photo %s: %w", p.UID, err)
	}

	return vector, nil
}

// Cluster groups photos whose vectors fall within opts.Threshold of a
// seed photo. Photos are visited in ascending UID order; each unclaimed
// photo in turn becomes a seed and claims every later unclaimed photo
// within the threshold. Claimed photos are never revisited, so two photos
// both near a seed but far from each other still land in one cluster,
// while a chain of photos each near only its neighbor does not collapse
// into one.
func (s *Scanner) Cluster(ctx context.Context, vectors map[string]*featureprint.FeatureVector, opts ScanOptions) *ClusterResult {
	result := &ClusterResult{}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = config.DefaultSimilarityThreshold
	}

	uids := make([]string, 0, len(vectors))
	for uid := range vectors {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	claimed := make(map[string]bool, len(uids))

	for i, seedUID := range uids {
		// Cancellation is honored between seed rounds, never inside one,
		// so every emitted cluster is complete.
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{
				Phase:    "comparing",
				Current:  i + 1,
				Total:    len(uids),
				PhotoUID: seedUID,
			})
		}

		if claimed[seedUID] {
			continue
		}
		claimed[seedUID] = true

		cluster := Cluster{
			Members:    []string{seedUID},
			PairScores: make(map[string]float64),
		}
		seedVec := vectors[seedUID]

		for _, otherUID := range uids[i+1:] {
			if claimed[otherUID] {
				continue
			}

			dist, err := featureprint.Distance(seedVec, vectors[otherUID])
			if err != nil {
				// Incomparable vectors are never duplicates
				result.ComparisonErrors++
				continue
			}

			if dist < threshold {
				claimed[otherUID] = true
				cluster.Members = append(cluster.Members, otherUID)
				cluster.PairScores[database.PairKey(seedUID, otherUID)] = 1 - dist
			}
		}

		if len(cluster.Members) >= 2 {
			result.Clusters = append(result.Clusters, cluster)
		}
	}

	return result
}
