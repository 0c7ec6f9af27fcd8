package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database/postgres"
	"github.com/tomasrezac/photo-companion/internal/memories"
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Surface photos taken on this day in past years",
	Long: `Surface photos taken on today's date in earlier years.

Favorites and photos that have not been shown for a long time rank
higher. Surfaced photos are recorded so repeated runs rotate through
the library instead of showing the same photos every day.

Examples:
  # Today's memories
  photo-companion memories

  # More results, without recording them as shown
  photo-companion memories --limit 20 --no-mark

  # Output as JSON
  photo-companion memories --json`,
	RunE: runMemories,
}

func init() {
	rootCmd.AddCommand(memoriesCmd)

	memoriesCmd.Flags().Int("limit", memories.DefaultLimit, "Maximum number of memories")
	memoriesCmd.Flags().Bool("no-mark", false, "Do not record surfaced photos")
	memoriesCmd.Flags().Bool("json", false, "Output as JSON")
}

// memoryJSON is the CLI JSON representation of a surfaced memory.
type memoryJSON struct {
	PhotoUID     string     `json:"photo_uid"`
	Title        string     `json:"title,omitempty"`
	TakenAt      string     `json:"taken_at"`
	YearsAgo     int        `json:"years_ago"`
	Favorite     bool       `json:"favorite"`
	Score        float64    `json:"score"`
	LastSurfaced *time.Time `json:"last_surfaced,omitempty"`
}

func runMemories(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	noMark := mustGetBool(cmd, "no-mark")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	pool, err := initPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	client, err := newLibraryClient(cfg)
	if err != nil {
		return err
	}

	surfacer := memories.NewSurfacer(client, postgres.NewSurfaceLogRepository(pool))
	now := time.Now()

	found, err := surfacer.OnThisDay(ctx, now, limit)
	if err != nil {
		return fmt.Errorf("failed to find memories: %w", err)
	}

	if !noMark && len(found) > 0 {
		if err := surfacer.Surface(ctx, found, now); err != nil {
			return fmt.Errorf("failed to record surfaced photos: %w", err)
		}
	}

	if jsonOutput {
		out := make([]memoryJSON, 0, len(found))
		for _, m := range found {
			out = append(out, memoryJSON{
				PhotoUID:     m.Photo.UID,
				Title:        m.Photo.Title,
				TakenAt:      m.Photo.TakenAt,
				YearsAgo:     m.YearsAgo,
				Favorite:     m.Photo.Favorite,
				Score:        m.Score,
				LastSurfaced: m.LastSurfaced,
			})
		}
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
		return nil
	}

	if len(found) == 0 {
		fmt.Printf("No photos taken on %s in past years.\n", now.Format("January 2"))
		return nil
	}

	fmt.Printf("On this day, %s:\n\n", now.Format("January 2"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tYEARS AGO\tTITLE\tFAVORITE\tSCORE")
	fmt.Fprintln(w, "-----\t---------\t-----\t--------\t-----")
	for _, m := range found {
		favorite := ""
		if m.Photo.Favorite {
			favorite = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%.2f\n",
			m.Photo.UID, m.YearsAgo, m.Photo.Title, favorite, m.Score)
	}
	w.Flush()
	return nil
}
