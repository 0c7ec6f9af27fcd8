package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database/mariadb"
	"github.com/tomasrezac/photo-companion/internal/dupes"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library for duplicate photos",
	Long: `Scan the PhotoPrism library for visually duplicate photos.

Each photo is downscaled, sent to the local embedding server, and compared
against the others by cosine distance. Similar photos are grouped and the
groups are stored for review ('photo-companion groups list').

A full scan walks the whole library but reuses stored vectors for photos
whose content has not changed. An incremental scan (--since) only looks at
photos changed recently; it reads the PhotoPrism MariaDB database directly
and requires PHOTOPRISM_DATABASE_URL.

Examples:
  # Full scan with defaults
  photo-companion scan

  # Stricter threshold (lower = more similar)
  photo-companion scan --threshold 0.35

  # Only photos changed in the last day
  photo-companion scan --since 24h

  # Machine-readable summary
  photo-companion scan --json`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Duration("since", 0, "Incremental scan: only photos changed within this window (0 = full scan)")
	scanCmd.Flags().Float64("threshold", 0, "Maximum cosine distance for a duplicate pair (default from SIMILARITY_THRESHOLD)")
	scanCmd.Flags().Int("concurrency", 0, "Extraction workers (default from MAX_CONCURRENT_EXTRACTIONS)")
	scanCmd.Flags().Bool("json", false, "Output summary as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	since := mustGetDuration(cmd, "since")
	threshold := mustGetFloat64(cmd, "threshold")
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	if threshold == 0 {
		threshold = cfg.Scan.SimilarityThreshold
	}
	if concurrency == 0 {
		concurrency = cfg.Scan.MaxConcurrentExtractions
	}
	scanCfg := config.ScanConfig{SimilarityThreshold: threshold, MaxConcurrentExtractions: concurrency}
	if err := scanCfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		if !jsonOutput {
			fmt.Println("\nCancelling scan, finishing current round...")
		}
		cancel()
	}()

	pool, err := initPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !jsonOutput {
		fmt.Println("Connecting to PhotoPrism...")
	}
	client, err := newLibraryClient(cfg)
	if err != nil {
		return err
	}

	coordinator := newCoordinator(cfg, pool, client)
	opts := dupes.ScanOptions{
		Threshold:   threshold,
		Concurrency: concurrency,
	}
	if !jsonOutput {
		opts.OnProgress = newScanProgress()
	}

	var summary *dupes.ScanSummary
	if since > 0 {
		summary, err = runIncrementalScan(ctx, cfg, coordinator, since, opts, jsonOutput)
	} else {
		summary, err = coordinator.FullScan(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	return printScanSummary(summary, jsonOutput)
}

// runIncrementalScan reads the change feed from the PhotoPrism MariaDB
// database and feeds only changed and deleted photos into the coordinator.
func runIncrementalScan(ctx context.Context, cfg *config.Config, coordinator *dupes.Coordinator, since time.Duration, opts dupes.ScanOptions, jsonOutput bool) (*dupes.ScanSummary, error) {
	if cfg.PhotoPrism.DatabaseURL == "" {
		return nil, errors.New("PHOTOPRISM_DATABASE_URL environment variable is required for incremental scans")
	}

	mdb, err := mariadb.NewPool(cfg.PhotoPrism.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PhotoPrism database: %w", err)
	}
	defer mdb.Close()

	cutoff := time.Now().Add(-since)
	changed, err := mdb.PhotosChangedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to read changed photos: %w", err)
	}
	deleted, err := mdb.DeletedPhotoUIDs(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to read deleted photos: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("Incremental scan: %d changed, %d deleted since %s\n",
			len(changed), len(deleted), cutoff.Format(time.RFC3339))
	}

	refs := make([]dupes.PhotoRef, len(changed))
	for i, c := range changed {
		refs[i] = dupes.PhotoRef{UID: c.UID, ContentHash: c.FileHash}
	}

	return coordinator.IncrementalScan(ctx, refs, deleted, opts)
}

// newScanProgress returns a progress callback with one bar per scan phase.
func newScanProgress() func(dupes.ProgressInfo) {
	var bar *progressbar.ProgressBar
	var phase string

	descriptions := map[string]string{
		"extracting": "Extracting vectors",
		"comparing":  "Comparing photos",
	}

	return func(info dupes.ProgressInfo) {
		if info.Phase != phase {
			if bar != nil {
				_ = bar.Finish()
				fmt.Println()
			}
			phase = info.Phase
			description := descriptions[info.Phase]
			if description == "" {
				description = info.Phase
			}
			bar = progressbar.NewOptions(info.Total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("photos"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		if bar != nil {
			_ = bar.Set(info.Current)
		}
	}
}

func printScanSummary(summary *dupes.ScanSummary, jsonOutput bool) error {
	if jsonOutput {
		type jsonSummary struct {
			PhotosSeen        int      `json:"photos_seen"`
			Reused            int      `json:"reused"`
			Extracted         int      `json:"extracted"`
			Skipped           int      `json:"skipped"`
			ComparisonErrors  int      `json:"comparison_errors"`
			ClustersFound     int      `json:"clusters_found"`
			GroupsCreated     int      `json:"groups_created"`
			GroupsMerged      int      `json:"groups_merged"`
			ClustersDiscarded int      `json:"clusters_discarded"`
			Cancelled         bool     `json:"cancelled"`
			DurationSeconds   float64  `json:"duration_seconds"`
			SkippedPhotos     []string `json:"skipped_photos,omitempty"`
		}
		out := jsonSummary{
			PhotosSeen:        summary.PhotosSeen,
			Reused:            summary.Reused,
			Extracted:         summary.Extracted,
			Skipped:           len(summary.Skipped),
			ComparisonErrors:  summary.ComparisonErrors,
			ClustersFound:     summary.ClustersFound,
			GroupsCreated:     summary.GroupsCreated,
			GroupsMerged:      summary.GroupsMerged,
			ClustersDiscarded: summary.ClustersDiscarded,
			Cancelled:         summary.Cancelled,
			DurationSeconds:   summary.Duration.Seconds(),
		}
		for _, s := range summary.Skipped {
			out.SkippedPhotos = append(out.SkippedPhotos, s.UID)
		}
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
		return nil
	}

	fmt.Println()
	fmt.Printf("Photos seen:       %d\n", summary.PhotosSeen)
	fmt.Printf("Vectors reused:    %d\n", summary.Reused)
	fmt.Printf("Vectors extracted: %d\n", summary.Extracted)
	if len(summary.Skipped) > 0 {
		fmt.Printf("Skipped:           %d\n", len(summary.Skipped))
		for _, s := range summary.Skipped {
			fmt.Printf("  %s: %s\n", s.UID, s.Reason)
		}
	}
	if summary.ComparisonErrors > 0 {
		fmt.Printf("Comparison errors: %d\n", summary.ComparisonErrors)
	}
	fmt.Printf("Clusters found:    %d\n", summary.ClustersFound)
	fmt.Printf("Groups created:    %d\n", summary.GroupsCreated)
	fmt.Printf("Groups merged:     %d\n", summary.GroupsMerged)
	if summary.ClustersDiscarded > 0 {
		fmt.Printf("Discarded:         %d\n", summary.ClustersDiscarded)
	}
	fmt.Printf("Duration:          %s\n", summary.Duration.Round(time.Millisecond))
	if summary.Cancelled {
		fmt.Println("Scan was cancelled before completing")
	}
	return nil
}
