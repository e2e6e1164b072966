package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Analysis cache management commands",
	Long:  `Commands for inspecting and clearing the analyzed-clean cache.`,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}
