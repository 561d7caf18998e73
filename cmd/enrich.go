package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartxdr/core/internal/analyzers"
	"github.com/smartxdr/core/internal/enrich"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/prompts"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <case-id> <ioc-id>",
	Short: "Run AI enrichment for one IOC in a case",
	Long: `Fetches the analyzer reports attached to an IOC from case management,
produces an AI risk assessment grounded on internal playbooks, posts it
as a case comment, and optionally rewrites the IOC description.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().Bool("update-description", true, "rewrite the IOC description and tags")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	updateDesc, _ := cmd.Flags().GetBool("update-description")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)
	if cfg.Case.URL == "" {
		return fmt.Errorf("case.url is not configured")
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	repo, err := buildRepository(cfg, embedder)
	if err != nil {
		return err
	}
	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	limiter := limits.New(cfg.Limits.MaxCallsPerMinute, cfg.Limits.MaxDailyCostUSD)
	builder := prompts.NewBuilder(cfg.PromptsDir)
	pipeline := buildPipeline(cfg, repo, client, nil, limiter, builder, nil, logger)

	adapter := enrich.NewHTTPCaseAdapter(cfg.Case)
	explainer := enrich.NewExplainer(analyzers.NewRegistry(), pipeline, client, builder, cfg.LLM.ChatModel, logger)
	orchestrator := enrich.NewOrchestrator(adapter, explainer, client, builder, cfg.LLM.SummaryModel, logger)

	result, err := orchestrator.EnrichIOC(ctx, args[0], args[1], updateDesc)
	if err != nil {
		return err
	}

	if result.Status == "no_report" {
		fmt.Println("No enrichment report available for this IOC.")
		return nil
	}
	fmt.Printf("Risk level: %s (source: %s)\n\n", result.RiskLevel, result.DataSource)
	fmt.Println(result.Summary)
	if len(result.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range result.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
	if result.DescriptionUpdated {
		fmt.Println("\nIOC description updated.")
	}
	return nil
}
