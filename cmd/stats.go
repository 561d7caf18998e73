package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	buildLogger(cfg)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	repo, err := buildRepository(cfg, embedder)
	if err != nil {
		return err
	}

	stats, err := repo.Stats(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Documents:\t%d\n", stats.Total)
	fmt.Fprintf(w, "Active:\t%d\n", stats.Active)
	fmt.Fprintf(w, "Sources:\t%d\n", stats.UniqueSources)
	fmt.Fprintf(w, "Source IDs:\t%d\n", stats.UniqueSourceIDs)
	w.Flush()

	if len(stats.TagsDistribution) > 0 {
		fmt.Println("\nTags:")
		tags := make([]string, 0, len(stats.TagsDistribution))
		for t := range stats.TagsDistribution {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		for _, t := range tags {
			fmt.Printf("  %s: %d\n", t, stats.TagsDistribution[t])
		}
	}
	return nil
}
