package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tomasrezac/photo-companion/internal/classify"
	"github.com/tomasrezac/photo-companion/internal/config"
)

// Prices per 1M tokens for the models the classify command uses.
var modelPricing = map[string]classify.RequestPricing{
	"openai": {Input: 0.40, Output: 1.60},
	"gemini": {Input: 0.30, Output: 2.50},
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize [photo-uid]...",
	Short: "Classify photos into categories using a vision model",
	Long: `Classify photos with a vision language model and map the resulting
labels onto the built-in category tree.

Without --apply nothing is written back; the command only prints what
the model saw. With --apply, confident labels and the generated caption
are written to PhotoPrism.

Examples:
  # Preview classification for one photo
  photo-companion categorize pq8abc123def

  # Classify several photos and write labels back
  photo-companion categorize pq8abc123def pq8xyz456ghi --apply

  # Use Gemini instead of OpenAI
  photo-companion categorize pq8abc123def --provider gemini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCategorize,
}

func init() {
	rootCmd.AddCommand(categorizeCmd)

	categorizeCmd.Flags().String("provider", "openai", "Vision provider: openai or gemini")
	categorizeCmd.Flags().Bool("apply", false, "Write labels and caption back to PhotoPrism")
	categorizeCmd.Flags().Bool("json", false, "Output as JSON")
}

// categorizeResultJSON is the CLI JSON representation of one classified photo.
type categorizeResultJSON struct {
	PhotoUID      string                `json:"photo_uid"`
	Labels        []classify.LabelScore `json:"labels"`
	Categories    []string              `json:"categories"`
	Caption       string                `json:"caption,omitempty"`
	AppliedLabels int                   `json:"applied_labels,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// newClassifyProvider creates the requested vision provider from config.
func newClassifyProvider(ctx context.Context, cfg *config.Config, name string) (classify.Provider, error) {
	switch name {
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required")
		}
		return classify.NewOpenAIProvider(cfg.OpenAI.Token, modelPricing["openai"]), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required")
		}
		provider, err := classify.NewGeminiProvider(ctx, cfg.Gemini.APIKey, modelPricing["gemini"])
		if err != nil {
			return nil, fmt.Errorf("creating Gemini provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (use openai or gemini)", name)
	}
}

func runCategorize(cmd *cobra.Command, args []string) error {
	providerName := mustGetString(cmd, "provider")
	apply := mustGetBool(cmd, "apply")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	client, err := newLibraryClient(cfg)
	if err != nil {
		return err
	}

	provider, err := newClassifyProvider(ctx, cfg, providerName)
	if err != nil {
		return err
	}

	categories, err := classify.LoadCategories()
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	classifier := classify.NewClassifier(provider, client, categories)

	var results []categorizeResultJSON
	failed := 0
	for _, photoUID := range args {
		result, err := classifyOne(ctx, classifier, photoUID, apply)
		if err != nil {
			failed++
			results = append(results, categorizeResultJSON{PhotoUID: photoUID, Error: err.Error()})
			if !jsonOutput {
				fmt.Printf("%s: error: %v\n", photoUID, err)
			}
			continue
		}
		results = append(results, categorizeResultJSON{
			PhotoUID:      result.PhotoUID,
			Labels:        result.Labels,
			Categories:    result.Categories,
			Caption:       result.Caption,
			AppliedLabels: result.AppliedLabels,
		})
		if !jsonOutput {
			printCategorizeResult(result, apply)
		}
	}

	usage := provider.GetUsage()
	if jsonOutput {
		out := map[string]any{
			"results": results,
			"usage": map[string]any{
				"input_tokens":  usage.InputTokens,
				"output_tokens": usage.OutputTokens,
				"total_cost":    usage.TotalCost,
			},
		}
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
	} else {
		fmt.Printf("\nUsage: %d input + %d output tokens ($%.4f)\n",
			usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed", failed, len(args))
	}
	return nil
}

func classifyOne(ctx context.Context, classifier *classify.Classifier, photoUID string, apply bool) (*classify.Result, error) {
	if apply {
		return classifier.ClassifyAndApply(ctx, photoUID)
	}
	return classifier.ClassifyPhoto(ctx, photoUID)
}

func printCategorizeResult(result *classify.Result, apply bool) {
	labels := make([]string, 0, len(result.Labels))
	for _, l := range result.Labels {
		labels = append(labels, fmt.Sprintf("%s (%.0f%%)", l.Name, l.Confidence*100))
	}

	fmt.Printf("%s\n", result.PhotoUID)
	fmt.Printf("  Labels:     %s\n", strings.Join(labels, ", "))
	fmt.Printf("  Categories: %s\n", strings.Join(result.Categories, ", "))
	if result.Caption != "" {
		fmt.Printf("  Caption:    %s\n", result.Caption)
	}
	if apply {
		fmt.Printf("  Applied:    %d labels\n", result.AppliedLabels)
	}
}
