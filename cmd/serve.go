package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smartxdr/core/internal/alerts"
	"github.com/smartxdr/core/internal/analyzers"
	"github.com/smartxdr/core/internal/enrich"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/prompts"
	"github.com/smartxdr/core/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SmartXDR HTTP API server",
	Long: `Starts the HTTP API: RAG document management and querying, alert
triage summaries, and IOC enrichment. Collaborators that are not
configured (log store, case management) are left out and their
endpoints report unavailable.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override server.port from config")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
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
	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	limiter := limits.New(cfg.Limits.MaxCallsPerMinute, cfg.Limits.MaxDailyCostUSD)
	respCache := buildCache(cfg, embedder, logger)
	builder := prompts.NewBuilder(cfg.PromptsDir)
	mem := buildMemory(cfg, logger)
	if mem != nil {
		defer mem.Close()
	}
	pipeline := buildPipeline(cfg, repo, client, respCache, limiter, builder, mem, logger)

	opts := server.Options{
		Config:  cfg.Server,
		Repo:    repo,
		RAG:     pipeline,
		Limiter: limiter,
		Cache:   respCache,
		Logger:  logger,
	}

	if cfg.LogStore.URL != "" {
		store := alerts.NewOpenSearchStore(cfg.LogStore)
		opts.Alerts = alerts.NewSummarizer(store, pipeline, builder, cfg.Alerts, logger)
	} else {
		logger.Warn("log_store.url not set, alert summarization disabled")
	}

	if cfg.Case.URL != "" {
		adapter := enrich.NewHTTPCaseAdapter(cfg.Case)
		explainer := enrich.NewExplainer(analyzers.NewRegistry(), pipeline, client, builder, cfg.LLM.ChatModel, logger)
		opts.Enrich = enrich.NewOrchestrator(adapter, explainer, client, builder, cfg.LLM.SummaryModel, logger)
	} else {
		logger.Warn("case.url not set, IOC enrichment disabled")
	}

	srv := server.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		srv.Shutdown(context.Background())
	}()

	stats, _ := repo.Stats(context.Background())
	logger.Info("smartxdr starting",
		"version", Version,
		"port", cfg.Server.Port,
		"data_dir", cfg.DataDir,
		"documents", stats.Total,
		"provider", client.ProviderName())

	return srv.Start()
}
