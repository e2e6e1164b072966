package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"photosweep/internal/analyze"
	"photosweep/internal/cache"
	"photosweep/internal/catalog"
	"photosweep/internal/config"
	"photosweep/internal/engine"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library for duplicates, similars and flawed photos",
	Long: `Scan the photo library and build candidate groups for review.

Detection modules run in a fixed order: exact duplicates and bursts first,
then visually similar shots, then the issue detectors (blurry, exposure,
faces, screenshots; orientation with --orientation). Photos already checked
clean on a previous scan are skipped, up to --batch-limit new photos get the
expensive detectors per run.

Examples:
  # Scan a local directory
  photosweep scan --library ~/Pictures

  # Scan PhotoPrism with the OpenAI detector, 20 new photos per run
  photosweep scan --provider openai --batch-limit 20

  # Include the rotation detector
  photosweep scan --orientation`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("library", "", "Local photo directory (overrides LIBRARY_PATH)")
	scanCmd.Flags().String("provider", "heuristic", "Detector backend: heuristic, openai or gemini")
	scanCmd.Flags().Int("batch-limit", 0, "Max new photos per scan for the issue detectors (0 = configured default)")
	scanCmd.Flags().StringSlice("modules", nil, "Modules to run (default: configured set)")
	scanCmd.Flags().Bool("orientation", false, "Also run the rotation detector")
	scanCmd.Flags().Bool("dry-run", false, "Do not persist the resulting groups")
}

func runScan(cmd *cobra.Command, args []string) error {
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

	opts := scanOptions(cmd, cfg)

	var bar *progressbar.ProgressBar
	opts.Progress = &analyze.ProgressSink{
		OnMilestone: func(m analyze.Milestone) {
			if bar != nil {
				_ = bar.Finish()
				bar = nil
				fmt.Println()
			}
			fmt.Printf("-> %s\n", m)
		},
		OnAsset: func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Inspecting photos"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		},
	}

	analyzer := analyze.New(lib, buildEmbedder(cfg), provider, analysisCache)
	groups, err := analyzer.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printGroupSummary(groups)

	if mustGetBool(cmd, "dry-run") {
		fmt.Println("Dry run, groups were not persisted")
		return nil
	}

	session := engine.NewSession(groups, lib, analysisCache, store)
	if err := session.Save(ctx); err != nil {
		return fmt.Errorf("failed to persist groups: %w", err)
	}
	fmt.Println("Groups saved, run `photosweep serve` to review them")
	return nil
}

// scanOptions resolves analyzer options from flags and configuration.
func scanOptions(cmd *cobra.Command, cfg *config.Config) analyze.Options {
	opts := analyze.Options{
		BatchLimit:         mustGetInt(cmd, "batch-limit"),
		DuplicateThreshold: cfg.Analysis.DuplicateThreshold,
		SimilarThreshold:   cfg.Analysis.SimilarThreshold,
		Workers:            cfg.Analysis.Workers,
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = cfg.Analysis.BatchLimit
	}

	if names := mustGetStringSlice(cmd, "modules"); len(names) > 0 {
		for _, name := range names {
			cat := catalog.Category(name)
			if cat.Valid() {
				opts.EnabledModules = append(opts.EnabledModules, cat)
			} else {
				fmt.Printf("Warning: ignoring unknown module %q\n", name)
			}
		}
	} else {
		opts.EnabledModules = cfg.Analysis.EnabledModules()
	}

	if mustGetBool(cmd, "orientation") {
		found := false
		for _, m := range opts.EnabledModules {
			if m == catalog.CategoryOrientation {
				found = true
			}
		}
		if !found {
			opts.EnabledModules = append(opts.EnabledModules, catalog.CategoryOrientation)
		}
	}
	return opts
}

func printGroupSummary(groups []catalog.PhotoGroup) {
	if len(groups) == 0 {
		fmt.Println("No candidate groups found, library looks clean")
		return
	}

	byCategory := make(map[catalog.Category]int)
	photos := make(map[catalog.Category]int)
	for _, g := range groups {
		byCategory[g.Category]++
		photos[g.Category] += len(g.Images)
	}

	fmt.Printf("\nFound %d candidate groups:\n\n", len(groups))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tGROUPS\tPHOTOS")
	for _, cat := range catalog.AllCategories {
		if byCategory[cat] == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", cat, byCategory[cat], photos[cat])
	}
	w.Flush()
	fmt.Println()
}
