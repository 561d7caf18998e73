package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// LLMConfig selects the models and providers used by the assistant.
type LLMConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	ChatModel         string       `yaml:"chat_model" koanf:"chat_model"`
	SummaryModel      string       `yaml:"summary_model" koanf:"summary_model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	// Pricing used for cost accounting, in USD per 1M tokens. When zero the
	// built-in price table is consulted by model name.
	InputPricePer1M  float64 `yaml:"input_price_per_1m" koanf:"input_price_per_1m"`
	OutputPricePer1M float64 `yaml:"output_price_per_1m" koanf:"output_price_per_1m"`
	MaxRetries       int     `yaml:"max_retries" koanf:"max_retries"`
	TimeoutSeconds   int     `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// LimitsConfig throttles LLM usage per process.
type LimitsConfig struct {
	MaxCallsPerMinute int     `yaml:"max_calls_per_minute" koanf:"max_calls_per_minute"`
	MaxDailyCostUSD   float64 `yaml:"max_daily_cost" koanf:"max_daily_cost"`
}

// CacheConfig controls the two-tier response cache.
type CacheConfig struct {
	Enabled             bool    `yaml:"enabled" koanf:"enabled"`
	TTLSeconds          int     `yaml:"ttl" koanf:"ttl"`
	SemanticEnabled     bool    `yaml:"semantic_enabled" koanf:"semantic_enabled"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" koanf:"similarity_threshold"`
	RedisHost           string  `yaml:"redis_host" koanf:"redis_host"`
	RedisPort           int     `yaml:"redis_port" koanf:"redis_port"`
	RedisDB             int     `yaml:"redis_db" koanf:"redis_db"`
}

// RetrievalConfig tunes the RAG query pipeline.
type RetrievalConfig struct {
	StrictThreshold     float64 `yaml:"strict_threshold" koanf:"strict_threshold"`
	FallbackThreshold   float64 `yaml:"fallback_threshold" koanf:"fallback_threshold"`
	MaxRerankCandidates int     `yaml:"max_rerank_candidates" koanf:"max_rerank_candidates"`
	MaxContextChars     int     `yaml:"max_context_chars" koanf:"max_context_chars"`
	DefaultResults      int     `yaml:"default_results" koanf:"default_results"`
	RerankEnabled       bool    `yaml:"rerank_enabled" koanf:"rerank_enabled"`
	// CrossEncoderURL points at a TEI-style /rerank endpoint. Empty disables
	// cross-encoder re-ranking regardless of RerankEnabled.
	CrossEncoderURL   string `yaml:"cross_encoder_url" koanf:"cross_encoder_url"`
	CrossEncoderModel string `yaml:"cross_encoder_model" koanf:"cross_encoder_model"`
}

// SyncConfig controls document-directory reconciliation.
type SyncConfig struct {
	DocsDir      string   `yaml:"docs_dir" koanf:"docs_dir"`
	MaxChunkSize int      `yaml:"max_chunk_size" koanf:"max_chunk_size"`
	MinChunkSize int      `yaml:"min_chunk_size" koanf:"min_chunk_size"`
	BatchSize    int      `yaml:"batch_size" koanf:"batch_size"`
	SkipFiles    []string `yaml:"skip_files" koanf:"skip_files"`
	SkipDirs     []string `yaml:"skip_dirs" koanf:"skip_dirs"`
	Extensions   []string `yaml:"extensions" koanf:"extensions"`
	MaxFileSize  int64    `yaml:"max_file_size" koanf:"max_file_size"`
}

// AlertsConfig controls alert summarization.
type AlertsConfig struct {
	TimeWindowMinutes int      `yaml:"time_window" koanf:"time_window"`
	MinProbability    float64  `yaml:"min_probability" koanf:"min_probability"`
	SourceTypes       []string `yaml:"source_types" koanf:"source_types"`
	WhitelistIPs      []string `yaml:"whitelist_ips" koanf:"whitelist_ips"`
	IndexPattern      string   `yaml:"index_pattern" koanf:"index_pattern"`
	ChartsEnabled     bool     `yaml:"charts_enabled" koanf:"charts_enabled"`
	// Risk-score weights are accepted for compatibility with older deploys;
	// the scoring formula uses fixed multipliers (see alerts/risk.go).
	RiskWeights map[string]float64 `yaml:"risk_score_weights" koanf:"risk_score_weights"`
}

// LogStoreConfig points at the OpenSearch-compatible log store.
type LogStoreConfig struct {
	URL            string `yaml:"url" koanf:"url"`
	Username       string `yaml:"username" koanf:"username"`
	Password       string `yaml:"password" koanf:"password"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	InsecureTLS    bool   `yaml:"insecure_tls" koanf:"insecure_tls"`
}

// CaseConfig points at the case-management system used for IOC enrichment.
type CaseConfig struct {
	URL            string `yaml:"url" koanf:"url"`
	APIKey         string `yaml:"api_key" koanf:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port         int  `yaml:"port" koanf:"port"`
	AllowAllCORS bool `yaml:"allow_all_cors" koanf:"allow_all_cors"`
}

// Config is the top-level configuration, corresponding to smartxdr.yml.
type Config struct {
	DataDir    string          `yaml:"data_dir" koanf:"data_dir"`
	PromptsDir string          `yaml:"prompts_dir" koanf:"prompts_dir"`
	LLM        LLMConfig       `yaml:"llm" koanf:"llm"`
	Limits     LimitsConfig    `yaml:"limits" koanf:"limits"`
	Cache      CacheConfig     `yaml:"cache" koanf:"cache"`
	Retrieval  RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Sync       SyncConfig      `yaml:"sync" koanf:"sync"`
	Alerts     AlertsConfig    `yaml:"alerts" koanf:"alerts"`
	LogStore   LogStoreConfig  `yaml:"log_store" koanf:"log_store"`
	Case       CaseConfig      `yaml:"case" koanf:"case"`
	Server     ServerConfig    `yaml:"server" koanf:"server"`
	LogLevel   string          `yaml:"log_level" koanf:"log_level"`
	LogFormat  string          `yaml:"log_format" koanf:"log_format"`
	// DebugTextLength truncates large payloads in debug logs.
	DebugTextLength int `yaml:"debug_text_length" koanf:"debug_text_length"`
}
