package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-companion",
	Short: "A companion tool for curating a PhotoPrism library",
	Long: `Photo Companion connects to a PhotoPrism instance and helps keep the
library tidy: it finds visually duplicate photos using image embeddings,
resurfaces forgotten memories, and classifies photos into categories
using vision models (OpenAI, Gemini).`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
