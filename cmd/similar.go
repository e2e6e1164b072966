package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"photosweep/internal/cluster"
	"photosweep/internal/config"
)

var similarCmd = &cobra.Command{
	Use:   "similar <asset-id>",
	Short: "Find photos visually similar to one asset",
	Long: `Search the cached embeddings for photos similar to the given asset.
The index is built from embeddings stored by previous scans, so the asset
must have been scanned at least once.

Examples:
  photosweep similar IMG_2041.jpg
  photosweep similar IMG_2041.jpg --count 20 --max-distance 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().Int("count", 10, "Number of results")
	similarCmd.Flags().Float64("max-distance", 0, "Cosine distance cutoff (0 = configured similar threshold)")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	assetID := args[0]
	ctx := context.Background()
	cfg := config.Load()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embeddings, err := store.Embeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		return fmt.Errorf("no embeddings cached yet, run `photosweep scan` first")
	}

	indexed := make([]cluster.IndexedEmbedding, 0, len(embeddings))
	for _, emb := range embeddings {
		indexed = append(indexed, cluster.IndexedEmbedding{AssetID: emb.AssetID, Vector: emb.Vector})
	}
	index := cluster.NewIndex()
	index.Build(indexed)
	fmt.Printf("Index built with %d embeddings\n", index.Count())

	query := index.Vector(assetID)
	if query == nil {
		return fmt.Errorf("asset %s has no cached embedding", assetID)
	}

	maxDistance, err := cmd.Flags().GetFloat64("max-distance")
	if err != nil {
		panic(fmt.Sprintf("flag error for --max-distance: %v", err))
	}
	if maxDistance <= 0 {
		maxDistance = cfg.Analysis.SimilarThreshold
	}

	count := mustGetInt(cmd, "count")
	// One extra because the query asset matches itself at distance 0.
	ids, distances, err := index.Search(query, count+1, maxDistance)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tDISTANCE")
	shown := 0
	for i, id := range ids {
		if id == assetID {
			continue
		}
		fmt.Fprintf(w, "%s\t%.4f\n", id, distances[i])
		shown++
		if shown == count {
			break
		}
	}
	w.Flush()

	if shown == 0 {
		fmt.Printf("No photos within distance %.2f of %s\n", maxDistance, assetID)
	}
	return nil
}
