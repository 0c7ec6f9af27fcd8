package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/database/postgres"
	"github.com/tomasrezac/photo-companion/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API server",
	Long: `Start the Photo Companion review API.

The API exposes the duplicate groups found by scans and lets a frontend
resolve them, remove wrongly grouped photos, and start new scans with
live progress over server-sent events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Scan.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := initPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	fmt.Println("Connecting to PhotoPrism...")
	client, err := newLibraryClient(cfg)
	if err != nil {
		return err
	}

	coordinator := newCoordinator(cfg, pool, client)
	groups := database.NewGroupStore(postgres.NewGroupRepository(pool))

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(coordinator, groups, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Companion API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
