package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"photosweep/internal/cache"
	"photosweep/internal/config"
	"photosweep/internal/engine"
	"photosweep/internal/web"
	"photosweep/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review web server",
	Long: `Start the Photosweep web server.
The server exposes the scan and review API: start scans, follow their
progress over SSE, walk through candidate groups, and confirm deletions.
Pending groups from a previous scan are loaded on startup.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("library", "", "Local photo directory (overrides LIBRARY_PATH)")
	serveCmd.Flags().String("provider", "heuristic", "Detector backend: heuristic, openai or gemini")
}

// resolveServeHostPort resolves port and host from flags and environment.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	lib, err := buildLibrary(ctx, cfg, mustGetString(cmd, "library"))
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	analysisCache, err := cache.Load(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to load analysis cache: %w", err)
	}

	provider, err := buildProvider(ctx, cfg, mustGetString(cmd, "provider"))
	if err != nil {
		return err
	}

	host, port := resolveServeHostPort(cmd)

	server := web.NewServer(handlers.Deps{
		Config:   cfg,
		Library:  lib,
		Embedder: buildEmbedder(cfg),
		Provider: provider,
		Cache:    analysisCache,
		Store:    store,
	}, host, port)

	// Resume a previous review session from persisted groups.
	if pending, err := store.LoadPendingGroups(ctx); err != nil {
		fmt.Printf("Warning: failed to load pending groups: %v\n", err)
	} else if len(pending) > 0 {
		fmt.Printf("Loaded %d pending groups from a previous scan\n", len(pending))
		server.SessionHolder().Set(engine.NewSession(pending, lib, analysisCache, store))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photosweep on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
