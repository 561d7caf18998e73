package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartxdr/core/internal/cache"
	"github.com/smartxdr/core/internal/config"
	"github.com/smartxdr/core/internal/embeddings"
	"github.com/smartxdr/core/internal/limits"
	"github.com/smartxdr/core/internal/llm"
	"github.com/smartxdr/core/internal/memory"
	"github.com/smartxdr/core/internal/prompts"
	"github.com/smartxdr/core/internal/rag"
	"github.com/smartxdr/core/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `smartxdr init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildLogger configures the process-wide slog logger from config.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// buildEmbedder creates the embeddings provider from config.
func buildEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.LLM.EmbeddingProvider
	if provider == "" {
		provider = cfg.LLM.Provider
	}
	apiKey := os.Getenv(config.APIKeyEnvVar(provider))
	if provider != config.ProviderOllama && apiKey == "" {
		// Embeddings fall back to OpenAI for providers without a native API.
		apiKey = os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is required for embeddings", config.APIKeyEnvVar(config.ProviderOpenAI))
		}
	}
	return embeddings.NewEmbedder(string(provider), apiKey, cfg.LLM.EmbeddingModel)
}

// buildLLMClient creates the retrying LLM client from config.
func buildLLMClient(cfg *config.Config) (*llm.Client, error) {
	provider, err := llm.NewProvider(string(cfg.LLM.Provider), cfg.LLM.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	var opts []llm.ClientOption
	if cfg.LLM.MaxRetries > 0 {
		opts = append(opts, llm.WithMaxRetries(cfg.LLM.MaxRetries))
	}
	if cfg.LLM.TimeoutSeconds > 0 {
		opts = append(opts, llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second))
	}
	if cfg.LLM.InputPricePer1M > 0 || cfg.LLM.OutputPricePer1M > 0 {
		opts = append(opts, llm.WithPricing(llm.Pricing{
			InputPerMillion:  cfg.LLM.InputPricePer1M,
			OutputPerMillion: cfg.LLM.OutputPricePer1M,
		}))
	}
	return llm.NewClient(provider, opts...), nil
}

// buildRepository opens the persistent vector store under data_dir.
func buildRepository(cfg *config.Config, embedder embeddings.Embedder) (vectordb.Repository, error) {
	repo, err := vectordb.NewChromemRepository(embedder, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return repo, nil
}

// buildCache creates the two-tier response cache, or nil when disabled.
func buildCache(cfg *config.Config, embedder embeddings.Embedder, logger *slog.Logger) *cache.ResponseCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	var rdb redis.Cmdable
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr(),
			DB:   cfg.Cache.RedisDB,
		})
	}
	var embedFn cache.EmbedFunc
	if cfg.Cache.SemanticEnabled && embedder != nil {
		embedFn = embedder.EmbedQuery
	}
	return cache.New(cache.Options{
		TTL:                 time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Redis:               rdb,
		Semantic:            cfg.Cache.SemanticEnabled,
		SimilarityThreshold: float32(cfg.Cache.SimilarityThreshold),
		Embed:               embedFn,
		Logger:              logger,
	})
}

// buildMemory opens the conversation store under data_dir. Failures
// are non-fatal; sessions just run stateless.
func buildMemory(cfg *config.Config, logger *slog.Logger) *memory.Store {
	if cfg.DataDir == "" {
		return nil
	}
	store, err := memory.Open(filepath.Join(cfg.DataDir, "conversations.db"))
	if err != nil {
		logger.Warn("conversation memory unavailable", "error", err)
		return nil
	}
	return store
}

// buildPipeline assembles the full RAG query pipeline.
func buildPipeline(cfg *config.Config, repo vectordb.Repository, client *llm.Client, respCache *cache.ResponseCache, limiter *limits.Limiter, builder *prompts.Builder, mem *memory.Store, logger *slog.Logger) *rag.Pipeline {
	var reranker rag.Reranker
	if cfg.Retrieval.RerankEnabled && cfg.Retrieval.CrossEncoderURL != "" {
		reranker = rag.NewHTTPReranker(cfg.Retrieval.CrossEncoderURL, cfg.Retrieval.CrossEncoderModel)
	}
	opts := rag.Options{
		Repository: repo,
		Client:     client,
		Cache:      respCache,
		Limiter:    limiter,
		Prompts:    builder,
		Reranker:   reranker,
		Retrieval:  cfg.Retrieval,
		ChatModel:  cfg.LLM.ChatModel,
		Logger:     logger,
	}
	if mem != nil {
		opts.Memory = mem
	}
	return rag.New(opts)
}
