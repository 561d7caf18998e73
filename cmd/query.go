package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/memory"
	"github.com/smartxdr/core/internal/prompts"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask the security knowledge base a question",
	Long: `Runs a question through the full RAG pipeline: retrieval from the
vector store, optional re-ranking, and an LLM answer grounded on the
retrieved context.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueryCmd,
}

func init() {
	queryCmd.Flags().Int("top-k", 0, "number of documents to retrieve (default from config)")
	queryCmd.Flags().String("source", "", "restrict retrieval to one source file")
	queryCmd.Flags().String("session", "", "session ID for follow-up questions with conversation memory")
	queryCmd.Flags().Bool("json", false, "output the full result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	topK, _ := cmd.Flags().GetInt("top-k")
	source, _ := cmd.Flags().GetString("source")
	sessionID, _ := cmd.Flags().GetString("session")
	jsonOutput, _ := cmd.Flags().GetBool("json")

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
	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	limiter := limits.New(cfg.Limits.MaxCallsPerMinute, cfg.Limits.MaxDailyCostUSD)
	respCache := buildCache(cfg, embedder, logger)
	builder := prompts.NewBuilder(cfg.PromptsDir)

	var mem *memory.Store
	if sessionID != "" {
		if mem = buildMemory(cfg, logger); mem != nil {
			defer mem.Close()
		}
	}
	pipeline := buildPipeline(cfg, repo, client, respCache, limiter, builder, mem, logger)

	var filters map[string]string
	if source != "" {
		filters = map[string]string{"source": source}
	}

	result, err := pipeline.Query(ctx, args[0], topK, filters, sessionID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			fmt.Printf("  - %s (distance %.3f)\n", src.Source, src.Distance)
		}
	}
	if result.Cached {
		fmt.Println("\n(served from cache)")
	} else {
		fmt.Printf("\n(%d documents, $%.6f, %dms)\n",
			result.DocumentsRetrieved, result.Cost, result.ProcessingTime)
	}
	return nil
}
