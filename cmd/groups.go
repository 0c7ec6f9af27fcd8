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
	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/database/postgres"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Review duplicate photo groups",
	Long: `Review the duplicate groups found by 'photo-companion scan'.

Each group lists visually similar photos with the recommended photo to
keep first. Resolving a group marks it as handled; it stays in the
database but disappears from the review queue.`,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved duplicate groups",
	RunE:  runGroupsList,
}

var groupsShowCmd = &cobra.Command{
	Use:   "show [group-id]",
	Short: "Show one duplicate group in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsShow,
}

var groupsResolveCmd = &cobra.Command{
	Use:   "resolve [group-id]",
	Short: "Mark a duplicate group as handled",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsResolve,
}

var groupsRemoveCmd = &cobra.Command{
	Use:   "remove [group-id] [photo-uid]",
	Short: "Remove a photo from a duplicate group",
	Long: `Remove a wrongly grouped photo from a duplicate group.

A group reduced to a single photo is resolved automatically.`,
	Args: cobra.ExactArgs(2),
	RunE: runGroupsRemove,
}

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsShowCmd)
	groupsCmd.AddCommand(groupsResolveCmd)
	groupsCmd.AddCommand(groupsRemoveCmd)

	groupsListCmd.Flags().Bool("json", false, "Output as JSON")
	groupsShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// groupJSON is the CLI JSON representation of a duplicate group.
type groupJSON struct {
	ID                string             `json:"id"`
	Members           []string           `json:"members"`
	Representative    string             `json:"representative"`
	PairScores        map[string]float64 `json:"pair_scores,omitempty"`
	AverageSimilarity float64            `json:"average_similarity"`
	CreatedAt         time.Time          `json:"created_at"`
}

func toGroupJSON(g *database.DuplicateGroup) groupJSON {
	return groupJSON{
		ID:                g.ID,
		Members:           g.Members,
		Representative:    g.Representative(),
		PairScores:        g.PairScores,
		AverageSimilarity: g.AverageSimilarity(),
		CreatedAt:         g.CreatedAt,
	}
}

// initGroupStore connects to PostgreSQL and returns the group store.
func initGroupStore(ctx context.Context) (*database.GroupStore, *postgres.Pool, error) {
	cfg := config.Load()
	pool, err := initPostgres(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return database.NewGroupStore(postgres.NewGroupRepository(pool)), pool, nil
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	store, pool, err := initGroupStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	groups, err := store.UnresolvedGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	if jsonOutput {
		out := make([]groupJSON, 0, len(groups))
		for i := range groups {
			out = append(out, toGroupJSON(&groups[i]))
		}
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
		return nil
	}

	if len(groups) == 0 {
		fmt.Println("No unresolved duplicate groups. Run 'photo-companion scan' to look for new ones.")
		return nil
	}

	fmt.Printf("Found %d unresolved groups:\n\n", len(groups))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tPHOTOS\tSIMILARITY\tKEEP\tCREATED")
	fmt.Fprintln(w, "-----\t------\t----------\t----\t-------")
	for i := range groups {
		g := &groups[i]
		fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%s\t%s\n",
			g.ID, len(g.Members), g.AverageSimilarity()*100, g.Representative(),
			g.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func runGroupsShow(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	store, pool, err := initGroupStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	g, err := store.GetGroup(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}
	if g == nil {
		return fmt.Errorf("group %s not found", args[0])
	}

	if jsonOutput {
		if err := json.NewEncoder(os.Stdout).Encode(toGroupJSON(g)); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
		return nil
	}

	fmt.Printf("Group %s (created %s)\n", g.ID, g.CreatedAt.Format("2006-01-02 15:04"))
	if g.Resolved {
		fmt.Println("Status: resolved")
	} else {
		fmt.Println("Status: unresolved")
	}
	fmt.Printf("Average similarity: %.2f%%\n\n", g.AverageSimilarity()*100)

	for i, member := range g.Members {
		marker := " "
		if i == 0 {
			marker = "*" // recommended keep
		}
		fmt.Printf("  %s %s\n", marker, member)
	}

	if len(g.PairScores) > 0 {
		fmt.Println("\nPair similarities:")
		for key, score := range g.PairScores {
			a, b := database.SplitPairKey(key)
			fmt.Printf("  %s <-> %s: %.2f%%\n", a, b, score*100)
		}
	}
	return nil
}

func runGroupsResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, pool, err := initGroupStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.MarkResolved(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to resolve group: %w", err)
	}
	fmt.Printf("Group %s resolved\n", args[0])
	return nil
}

func runGroupsRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, pool, err := initGroupStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	groupID, photoUID := args[0], args[1]
	if err := store.RemoveMember(ctx, groupID, photoUID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	fmt.Printf("Removed %s from group %s\n", photoUID, groupID)

	g, err := store.GetGroup(ctx, groupID)
	if err == nil && g != nil && g.Resolved {
		fmt.Println("Group had one photo left and was resolved automatically")
	}
	return nil
}
