package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartxdr/core/internal/alerts"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/prompts"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Summarize recent ML-classified alerts from the log store",
	RunE:  runAlerts,
}

func init() {
	alertsCmd.Flags().Int("window", 0, "time window in minutes (default from config)")
	alertsCmd.Flags().String("source-ip", "", "restrict to one source IP")
	alertsCmd.Flags().Bool("no-ai", false, "skip the AI analysis step")
	alertsCmd.Flags().Bool("json", false, "output the full result as JSON")
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	window, _ := cmd.Flags().GetInt("window")
	sourceIP, _ := cmd.Flags().GetString("source-ip")
	noAI, _ := cmd.Flags().GetBool("no-ai")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)
	if cfg.LogStore.URL == "" {
		return fmt.Errorf("log_store.url is not configured")
	}

	store := alerts.NewOpenSearchStore(cfg.LogStore)

	var summarizer *alerts.Summarizer
	if noAI {
		summarizer = alerts.NewSummarizer(store, nil, prompts.NewBuilder(cfg.PromptsDir), cfg.Alerts, logger)
	} else {
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
		summarizer = alerts.NewSummarizer(store, pipeline, builder, cfg.Alerts, logger)
	}

	result, err := summarizer.Summarize(ctx, window, sourceIP, "", !noAI)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Status == "no_alerts" {
		fmt.Println("No alerts in the selected window.")
		return nil
	}
	fmt.Println(result.Summary)
	if result.AIAnalysis != "" {
		fmt.Println("\nAI analysis:")
		fmt.Println(result.AIAnalysis)
	}
	return nil
}
