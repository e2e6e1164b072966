package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"photosweep/internal/config"
	"photosweep/internal/vision"
)

var fixCmd = &cobra.Command{
	Use:   "fix <asset-id>",
	Short: "Straighten a rotated photo",
	Long: `Inspect a single photo for a wrong orientation and, when one is
detected, store an upright rendition back in the library. The original
photo is kept.

Examples:
  photosweep fix IMG_2041.jpg
  photosweep fix IMG_2041.jpg --provider openai
  photosweep fix IMG_2041.jpg --rotate 90`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)

	fixCmd.Flags().String("library", "", "Path to a local photo directory")
	fixCmd.Flags().String("provider", "", "Detector backend: heuristic, openai or gemini")
	fixCmd.Flags().Int("rotate", 0, "Rotate by a fixed angle instead of detecting one (90, 180 or 270)")
}

func runFix(cmd *cobra.Command, args []string) error {
	assetID := args[0]
	ctx := context.Background()
	cfg := config.Load()

	lib, err := buildLibrary(ctx, cfg, mustGetString(cmd, "library"))
	if err != nil {
		return err
	}

	data, err := lib.Image(ctx, assetID)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", assetID, err)
	}

	degrees := mustGetInt(cmd, "rotate")
	if degrees == 0 {
		provider, err := buildProvider(ctx, cfg, mustGetString(cmd, "provider"))
		if err != nil {
			return err
		}
		inspection, err := provider.Inspect(ctx, data, &vision.PhotoMeta{Name: filepath.Base(assetID)})
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", assetID, err)
		}
		if inspection.Orientation == nil {
			fmt.Printf("%s looks upright already, nothing to do\n", assetID)
			return nil
		}
		degrees = *inspection.Orientation
		fmt.Printf("Detected a %d degree rotation (%s)\n", degrees, provider.Name())
	}

	rotated, err := vision.Rotate(data, degrees)
	if err != nil {
		return fmt.Errorf("failed to rotate %s: %w", assetID, err)
	}

	if err := lib.ReplaceWithEdited(ctx, assetID, rotated); err != nil {
		return fmt.Errorf("failed to store the edited photo: %w", err)
	}

	fmt.Printf("Stored an upright rendition of %s\n", assetID)
	return nil
}
