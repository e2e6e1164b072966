package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"photosweep/internal/catalog"
	"photosweep/internal/config"
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear [module]",
	Short: "Clear the analyzed-clean cache",
	Long: `Clear the analyzed-clean cache so photos get re-evaluated on the
next scan. With a module argument only that module's records are dropped,
without one the whole cache is cleared.

Examples:
  photosweep cache clear
  photosweep cache clear blurry`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 0 {
		if err := store.ClearAllAnalyzed(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cleared the analysis cache for all modules")
		return nil
	}

	module := catalog.Category(args[0])
	if !module.Valid() {
		return fmt.Errorf("unknown module %q", args[0])
	}
	if err := store.ClearAnalyzed(ctx, module); err != nil {
		return fmt.Errorf("failed to clear cache for %s: %w", module, err)
	}
	fmt.Printf("Cleared the analysis cache for %s\n", module)
	return nil
}
