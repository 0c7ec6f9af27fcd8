package dupes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/featureprint"
)

// pngBytes encodes a tiny solid-color PNG so the downscale step can decode it.
func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// angleVec builds a 2D unit vector at the given angle in degrees.
// The cosine distance between two of these is 1 - cos(a-b).
func angleVec(degrees float64) *featureprint.FeatureVector {
	rad := degrees * math.Pi / 180
	return &featureprint.FeatureVector{
		Values: []float32{float32(math.Cos(rad)), float32(math.Sin(rad))},
		Dim:    2,
	}
}

type fakeSource struct {
	mu     sync.Mutex
	images map[string][]byte
	errs   map[string]error
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		images: make(map[string][]byte),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeSource) Download(ctx context.Context, photoUID string) ([]byte, string, error) {
	f.mu.Lock()
	f.calls[photoUID]++
	f.mu.Unlock()
	if err := f.errs[photoUID]; err != nil {
		return nil, "", err
	}
	data, ok := f.images[photoUID]
	if !ok {
		return nil, "", fmt.Errorf("no image for %s", photoUID)
	}
	return data, "image/png", nil
}

// fakeExtractor maps image bytes to canned vectors so concurrent
// extraction stays deterministic.
type fakeExtractor struct {
	mu      sync.Mutex
	vectors map[string]*featureprint.FeatureVector
	errs    map[string]error
	calls   int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		vectors: make(map[string]*featureprint.FeatureVector),
		errs:    make(map[string]error),
	}
}

func (f *fakeExtractor) Extract(ctx context.Context, imageData []byte) (*featureprint.FeatureVector, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := f.errs[string(imageData)]; err != nil {
		return nil, err
	}
	vec, ok := f.vectors[string(imageData)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown image", featureprint.ErrExtractionFailed)
	}
	return vec, nil
}

func (f *fakeExtractor) Model() string { return "fake" }

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestExtract(t *testing.T) {
	source := newFakeSource()
	extractor := newFakeExtractor()

	refs := make([]PhotoRef, 3)
	for i := 0; i < 3; i++ {
		uid := fmt.Sprintf("photo%d", i)
		data := pngBytes(t, uint8(i*40))
		source.images[uid] = data
		extractor.vectors[string(data)] = angleVec(float64(i * 10))
		refs[i] = PhotoRef{UID: uid, ContentHash: fmt.Sprintf("hash%d", i)}
	}

	scanner := NewScanner(source, extractor, nil)
	result, err := scanner.Extract(context.Background(), refs, ScanOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(result.Vectors) != 3 {
		t.Errorf("expected 3 vectors, got %d", len(result.Vectors))
	}
	if len(result.Skipped) != 0 {
		t.Errorf("expected no skipped photos, got %v", result.Skipped)
	}
	if result.Cancelled {
		t.Error("scan should not be cancelled")
	}

	for _, r := range refs {
		if result.Vectors[r.UID] == nil {
			t.Errorf("missing vector for %s", r.UID)
		}
	}
}

func TestExtract_PartialFailure(t *testing.T) {
	source := newFakeSource()
	extractor := newFakeExtractor()

	goodData := pngBytes(t, 10)
	badData := pngBytes(t, 20)

	source.images["good"] = goodData
	source.images["badextract"] = badData
	source.errs["baddownload"] = errors.New("connection refused")

	extractor.vectors[string(goodData)] = angleVec(0)
	extractor.errs[string(badData)] = fmt.Errorf("%w: server error", featureprint.ErrExtractionFailed)

	refs := []PhotoRef{
		{UID: "good", ContentHash: "h1"},
		{UID: "baddownload", ContentHash: "h2"},
		{UID: "badextract", ContentHash: "h3"},
	}

	scanner := NewScanner(source, extractor, nil)
	result, err := scanner.Extract(context.Background(), refs, ScanOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(result.Vectors) != 1 {
		t.Errorf("expected 1 vector, got %d", len(result.Vectors))
	}
	if result.Vectors["good"] == nil {
		t.Error("expected vector for 'good'")
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("expected 2 skipped photos, got %d", len(result.Skipped))
	}
	if result.Cancelled {
		t.Error("per-photo failures must not cancel the scan")
	}

	skippedUIDs := map[string]bool{}
	for _, s := range result.Skipped {
		skippedUIDs[s.UID] = true
		if s.Reason == "" {
			t.Errorf("skipped photo %s has empty reason", s.UID)
		}
	}
	if !skippedUIDs["baddownload"] || !skippedUIDs["badextract"] {
		t.Errorf("unexpected skipped set: %v", result.Skipped)
	}
}

func TestExtract_CacheHit(t *testing.T) {
	source := newFakeSource()
	extractor := newFakeExtractor()
	cache := featureprint.NewVectorCache(10)

	data := pngBytes(t, 30)
	source.images["photo1"] = data
	extractor.vectors[string(data)] = angleVec(0)

	refs := []PhotoRef{{UID: "photo1", ContentHash: "h1"}}
	scanner := NewScanner(source, extractor, cache)

	if _, err := scanner.Extract(context.Background(), refs, ScanOptions{}); err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	if extractor.callCount() != 1 {
		t.Fatalf("expected 1 extractor call, got %d", extractor.callCount())
	}

	result, err := scanner.Extract(context.Background(), refs, ScanOptions{})
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}
	if extractor.callCount() != 1 {
		t.Errorf("expected cached vector to skip extraction, got %d calls", extractor.callCount())
	}
	if result.Vectors["photo1"] == nil {
		t.Error("expected vector from cache")
	}

	// A changed content hash misses the cache
	changed := []PhotoRef{{UID: "photo1", ContentHash: "h2"}}
	if _, err := scanner.Extract(context.Background(), changed, ScanOptions{}); err != nil {
		t.Fatalf("third Extract failed: %v", err)
	}
	if extractor.callCount() != 2 {
		t.Errorf("expected changed hash to re-extract, got %d calls", extractor.callCount())
	}
}

func TestExtract_Cancelled(t *testing.T) {
	source := newFakeSource()
	extractor := newFakeExtractor()

	refs := make([]PhotoRef, 4)
	for i := range refs {
		uid := fmt.Sprintf("photo%d", i)
		data := pngBytes(t, uint8(i*30))
		source.images[uid] = data
		extractor.vectors[string(data)] = angleVec(0)
		refs[i] = PhotoRef{UID: uid, ContentHash: fmt.Sprintf("h%d", i)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(source, extractor, nil)
	result, err := scanner.Extract(ctx, refs, ScanOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !result.Cancelled {
		t.Error("expected Cancelled to be set")
	}
	if len(result.Vectors) != 0 {
		t.Errorf("expected no vectors after pre-cancelled context, got %d", len(result.Vectors))
	}
	for _, s := range result.Skipped {
		if s.Reason != "scan cancelled" {
			t.Errorf("expected reason 'scan cancelled', got %q", s.Reason)
		}
	}
}

func TestCluster_SeedClaimsNearbyPhotos(t *testing.T) {
	// p2 and p3 are both within the threshold of seed p1 but far from
	// each other. The seed claims both, so they land in one cluster.
	vectors := map[string]*featureprint.FeatureVector{
		"p1": angleVec(0),
		"p2": angleVec(55),
		"p3": angleVec(-55),
	}

	scanner := NewScanner(newFakeSource(), newFakeExtractor(), nil)
	result := scanner.Cluster(context.Background(), vectors, ScanOptions{Threshold: 0.5})

	if len(result.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(result.Clusters))
	}

	cluster := result.Clusters[0]
	if len(cluster.Members) != 3 {
		t.Fatalf("expected 3 members, got %v", cluster.Members)
	}
	if cluster.Members[0] != "p1" {
		t.Errorf("expected seed p1 first, got %s", cluster.Members[0])
	}

	// Scores exist only for seed pairs
	if len(cluster.PairScores) != 2 {
		t.Errorf("expected 2 pair scores, got %d", len(cluster.PairScores))
	}
	score := cluster.PairScores[database.PairKey("p1", "p2")]
	want := math.Cos(55 * math.Pi / 180)
	if math.Abs(score-want) > 0.001 {
		t.Errorf("expected similarity %.3f for p1/p2, got %.3f", want, score)
	}
}

func TestCluster_NoTransitiveChaining(t *testing.T) {
	// p2 is near both p1 and p3, but p1 and p3 are far apart. The p1
	// seed claims p2; p3 is left alone and a singleton is not emitted.
	vectors := map[string]*featureprint.FeatureVector{
		"p1": angleVec(0),
		"p2": angleVec(50),
		"p3": angleVec(100),
	}

	scanner := NewScanner(newFakeSource(), newFakeExtractor(), nil)
	result := scanner.Cluster(context.Background(), vectors, ScanOptions{Threshold: 0.5})

	if len(result.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(result.Clusters))
	}
	cluster := result.Clusters[0]
	if len(cluster.Members) != 2 || cluster.Members[0] != "p1" || cluster.Members[1] != "p2" {
		t.Errorf("expected cluster [p1 p2], got %v", cluster.Members)
	}
}

func TestCluster_NoDuplicates(t *testing.T) {
	vectors := map[string]*featureprint.FeatureVector{
		"p1": angleVec(0),
		"p2": angleVec(90),
		"p3": angleVec(180),
	}

	scanner := NewScanner(newFakeSource(), newFakeExtractor(), nil)
	result := scanner.Cluster(context.Background(), vectors, ScanOptions{Threshold: 0.5})

	if len(result.Clusters) != 0 {
		t.Errorf("expected no clusters, got %v", result.Clusters)
	}
}

func TestCluster_ThresholdMonotonicity(t *testing.T) {
	vectors := map[string]*featureprint.FeatureVector{
		"p1": angleVec(0),
		"p2": angleVec(40),
		"p3": angleVec(50),
		"p4": angleVec(130),
	}

	scanner := NewScanner(newFakeSource(), newFakeExtractor(), nil)

	clusteredCount := func(threshold float64) int {
		result := scanner.Cluster(context.Background(), vectors, ScanOptions{Threshold: threshold})
		count := 0
		for _, c := range result.Clusters {
			count += len(c.Members)
		}
		return count
	}

	low := clusteredCount(0.3)
	mid := clusteredCount(0.5)
	high := clusteredCount(0.8)

	if low > mid || mid > high {
		t.Errorf("raising the threshold must not shrink clusters: %d, %d, %d", low, mid, high)
	}
}

func TestCluster_IncompatibleVectorsAreNotDuplicates(t *testing.T) {
	vectors := map[string]*featureprint.FeatureVector{
		"p1": angleVec(0),
		"p2": angleVec(10),
		"p3": {Values: []float32{1, 0, 0}, Dim: 3}, // dimension mismatch
	}

	scanner := NewScanner(newFakeSource(), newFakeExtractor(), nil)
	result := scanner.Cluster(context.Background(), vectors, ScanOptions{Threshold: 0.5})

	if result.ComparisonErrors == 0 {
		t.Error("expected comparison errors for mismatched dimensions")
	}

	if len(result.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(result.Clusters))
	}
	for _, m := range result.Clusters[0].Members {
		if m == "p3" {
			t.Error("incomparable photo must not join a cluster")
		}
	}
}

func TestCluster_CancelledBetweenSeedRounds(t *testing.T) {
	// Three well-separated pairs. Cancel after the second progress
	// report; later seed rounds must not run.
	vectors := map[string]*featureprint.FeatureVector{
		"a1": angleVec(0),
		"a2": angleVec(5),
		"b1": angleVec(90),
		"b2": angleVec(95),
		"c1": angleVec(180),
		"c2": angleVec(185),
	}

	ctx, cancel := context.WithCancel(context.Background())
	rounds := 0

	scanner := NewScanner(newFakeSource(), newFakeExtractor(), nil)
	result := scanner.Cluster(ctx, vectors, ScanOptions{
		Threshold: 0.5,
		OnProgress: func(info ProgressInfo) {
			rounds++
			if rounds == 2 {
				cancel()
			}
		},
	})

	if !result.Cancelled {
		t.Error("expected Cancelled to be set")
	}
	if len(result.Clusters) >= 3 {
		t.Errorf("expected partial clustering, got %d clusters", len(result.Clusters))
	}
	// Emitted clusters are complete pairs
	for _, c := range result.Clusters {
		if len(c.Members) != 2 {
			t.Errorf("expected complete pair, got %v", c.Members)
		}
	}
}
