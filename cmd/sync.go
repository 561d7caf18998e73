package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/progress"
	"github.com/smartxdr/core/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the documents directory with the vector store",
	Long: `Scans the configured docs directory, chunks new and changed files,
upserts them into the vector store, and removes chunks of deleted files.
Unchanged files (by content hash) are skipped.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("force", false, "rebuild the whole index regardless of hashes")
	syncCmd.Flags().Bool("dry-run", false, "show what would change without writing")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	force, _ := cmd.Flags().GetBool("force")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	repo, err := buildRepository(cfg, embedder)
	if err != nil {
		return err
	}

	engine := syncer.New(repo, cfg.Sync, embedder.MaxBatchSize(), logger)

	if dryRun {
		return printSyncPlan(ctx, engine, cfg.Sync.DocsDir, force)
	}

	reporter := progress.NewReporter()
	started := false
	engine.SetProgressFunc(func(done, total int) {
		if !started {
			reporter.Start(total)
			started = true
		}
		reporter.Update(done, fmt.Sprintf("%d/%d", done, total))
	})

	result, err := engine.Run(ctx, force)
	if started {
		reporter.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Printf("Sync complete in %s\n", result.Duration.Round(10*time.Millisecond))
	fmt.Printf("  Added:   %d\n", result.Added)
	fmt.Printf("  Updated: %d\n", result.Updated)
	fmt.Printf("  Deleted: %d\n", result.Deleted)
	fmt.Printf("  Skipped: %d\n", result.Skipped)
	if result.Errors > 0 {
		fmt.Printf("  Errors:  %d (see log)\n", result.Errors)
	}
	return nil
}

// printSyncPlan reports what a run would do, with a rough token estimate
// for the files that would be embedded.
func printSyncPlan(ctx context.Context, engine *syncer.Engine, docsDir string, force bool) error {
	plan, err := engine.Plan(ctx, force)
	if err != nil {
		return err
	}

	tokens := 0
	for _, rel := range append(append([]string{}, plan.New...), plan.Updated...) {
		data, err := os.ReadFile(filepath.Join(docsDir, rel))
		if err != nil {
			continue
		}
		tokens += llm.EstimateTokens(string(data))
	}

	fmt.Printf("Dry run (no changes made):\n")
	fmt.Printf("  New:       %d\n", len(plan.New))
	for _, f := range plan.New {
		fmt.Printf("    + %s\n", f)
	}
	fmt.Printf("  Updated:   %d\n", len(plan.Updated))
	for _, f := range plan.Updated {
		fmt.Printf("    ~ %s\n", f)
	}
	fmt.Printf("  Deleted:   %d\n", len(plan.Deleted))
	for _, f := range plan.Deleted {
		fmt.Printf("    - %s\n", f)
	}
	fmt.Printf("  Unchanged: %d\n", plan.Unchanged)
	fmt.Printf("  Estimated embedding volume: ~%d tokens\n", tokens)
	return nil
}
