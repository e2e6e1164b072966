package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photosweep",
	Short: "A CLI tool for finding and cleaning up redundant photos",
	Long: `Photosweep scans a photo library (a local directory or a PhotoPrism
instance) for exact duplicates, near-duplicate bursts, visually similar
shots and technically flawed photos (blurry, badly exposed, closed eyes,
rotated, screenshots), and walks you through keeping or deleting them.`,
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
