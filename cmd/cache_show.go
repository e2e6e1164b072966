package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"photosweep/internal/catalog"
	"photosweep/internal/config"
)

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show how many photos are cached clean per module",
	RunE:  runCacheShow,
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd)
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tPHOTOS CHECKED CLEAN")
	total := 0
	for _, module := range catalog.AllCategories {
		analyzed, err := store.Analyzed(ctx, module)
		if err != nil {
			return fmt.Errorf("failed to read cache for %s: %w", module, err)
		}
		fmt.Fprintf(w, "%s\t%d\n", module, len(analyzed))
		total += len(analyzed)
	}
	w.Flush()
	fmt.Printf("\nTotal records: %d\n", total)
	return nil
}
