package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database/postgres"
)

var nearCmd = &cobra.Command{
	Use:   "near [photo-uid]",
	Short: "Find photos similar to a given photo",
	Long: `Find photos visually similar to a given photo using stored feature vectors.

Lower distance values indicate more similar images. Photos without a stored
vector are invisible to this search; run 'photo-companion scan' first.

Examples:
  # Find similar photos
  photo-companion near pq8abc123def

  # Use stricter threshold (lower = more similar)
  photo-companion near pq8abc123def --threshold 0.3

  # Use the in-memory HNSW index for large libraries
  photo-companion near pq8abc123def --hnsw

  # Output as JSON
  photo-companion near pq8abc123def --json`,
	Args: cobra.ExactArgs(1),
	RunE: runNear,
}

func init() {
	rootCmd.AddCommand(nearCmd)

	nearCmd.Flags().Float64("threshold", 0.5, "Maximum cosine distance for similarity (lower = more similar)")
	nearCmd.Flags().Int("limit", 20, "Maximum number of results")
	nearCmd.Flags().Bool("hnsw", false, "Build an in-memory HNSW index for the search")
	nearCmd.Flags().Bool("json", false, "Output as JSON")
}

// NearPhoto represents a similar photo result.
type NearPhoto struct {
	PhotoUID   string  `json:"photo_uid"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"` // 1 - distance, for easier interpretation
}

// NearOutput represents the JSON output structure.
type NearOutput struct {
	SourcePhotoUID string      `json:"source_photo_uid"`
	Threshold      float64     `json:"threshold"`
	Results        []NearPhoto `json:"results"`
	Count          int         `json:"count"`
}

func runNear(cmd *cobra.Command, args []string) error {
	photoUID := args[0]
	threshold := mustGetFloat64(cmd, "threshold")
	limit := mustGetInt(cmd, "limit")
	useHNSW := mustGetBool(cmd, "hnsw")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	pool, err := initPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	vectors := postgres.NewVectorRepository(pool)
	if useHNSW {
		if !jsonOutput {
			fmt.Println("Building in-memory HNSW index...")
		}
		if err := vectors.EnableHNSW(ctx); err != nil {
			return fmt.Errorf("failed to build HNSW index: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("HNSW index built with %d vectors\n", vectors.HNSWCount())
		}
	}

	source, err := vectors.Get(ctx, photoUID)
	if err != nil {
		return fmt.Errorf("failed to get vector: %w", err)
	}
	if source == nil {
		return fmt.Errorf("no vector stored for photo %s, run 'photo-companion scan' first", photoUID)
	}

	if !jsonOutput {
		fmt.Printf("Searching for photos similar to %s (threshold: %.2f)...\n\n", photoUID, threshold)
	}

	similar, distances, err := vectors.FindSimilarWithDistance(ctx, source.Vector, limit+1, threshold)
	if err != nil {
		return fmt.Errorf("failed to find similar photos: %w", err)
	}

	var results []NearPhoto
	for i, v := range similar {
		if v.PhotoUID == photoUID {
			continue
		}
		results = append(results, NearPhoto{
			PhotoUID: v.PhotoUID, Distance: distances[i], Similarity: 1 - distances[i],
		})
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if jsonOutput {
		if err := json.NewEncoder(os.Stdout).Encode(NearOutput{
			SourcePhotoUID: photoUID, Threshold: threshold, Results: results, Count: len(results),
		}); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Printf("No similar photos found within threshold %.2f\n", threshold)
		return nil
	}

	fmt.Printf("Found %d similar photos:\n\n", len(results))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tDISTANCE\tSIMILARITY")
	fmt.Fprintln(w, "-----\t--------\t----------")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.4f\t%.2f%%\n", r.PhotoUID, r.Distance, r.Similarity*100)
	}
	w.Flush()
	return nil
}
