package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SMARTXDR_*). Nested keys use double
// underscores: SMARTXDR_CACHE__REDIS_HOST -> cache.redis_host.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("SMARTXDR_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SMARTXDR_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid llm.provider %q: must be one of openai, anthropic, ollama", c.LLM.Provider)
	}
	if c.LLM.ChatModel == "" {
		return fmt.Errorf("llm.chat_model is required")
	}
	if c.LLM.EmbeddingProvider != "" && !validProviders[c.LLM.EmbeddingProvider] {
		return fmt.Errorf("invalid llm.embedding_provider %q", c.LLM.EmbeddingProvider)
	}
	if c.Limits.MaxCallsPerMinute < 0 {
		return fmt.Errorf("limits.max_calls_per_minute must be non-negative")
	}
	if c.Limits.MaxDailyCostUSD < 0 {
		return fmt.Errorf("limits.max_daily_cost must be non-negative")
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [0,1]")
	}
	if c.Retrieval.StrictThreshold > c.Retrieval.FallbackThreshold {
		return fmt.Errorf("retrieval.strict_threshold must not exceed retrieval.fallback_threshold")
	}
	if c.Retrieval.MaxContextChars <= 0 {
		return fmt.Errorf("retrieval.max_context_chars must be positive")
	}
	if c.Sync.MaxChunkSize <= 0 {
		return fmt.Errorf("sync.max_chunk_size must be positive")
	}
	if c.Sync.MinChunkSize < 0 || c.Sync.MinChunkSize >= c.Sync.MaxChunkSize {
		return fmt.Errorf("sync.min_chunk_size must be in [0, max_chunk_size)")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Alerts.MinProbability < 0 || c.Alerts.MinProbability > 1 {
		return fmt.Errorf("alerts.min_probability must be in [0,1]")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// RedisAddr returns the host:port address of the L2 cache.
func (c *CacheConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
