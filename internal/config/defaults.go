package config

// DefaultSkipDirs are directory names never descended into during sync.
var DefaultSkipDirs = []string{
	".git",
	"__pycache__",
	"node_modules",
	".venv",
	"venv",
	".idea",
	".vscode",
	"tmp",
}

// DefaultSkipFiles are glob patterns excluded from sync by default.
var DefaultSkipFiles = []string{
	"*.tmp",
	"*.bak",
	"*.swp",
	".*",
	"Thumbs.db",
}

// DefaultExtensions is the sync extension allow-list.
var DefaultExtensions = []string{
	".md", ".markdown", ".rst",
	".txt", ".log", ".csv",
	".json", ".yaml", ".yml",
	".pdf",
}

// DefaultWhitelistIPs are infrastructure addresses excluded from alert
// grouping and enrichment.
var DefaultWhitelistIPs = []string{
	"127.0.0.1",
	"::1",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:    ".smartxdr",
		PromptsDir: "prompts",
		LLM: LLMConfig{
			Provider:          ProviderOpenAI,
			ChatModel:         "gpt-4o",
			SummaryModel:      "gpt-4o-mini",
			EmbeddingProvider: ProviderOpenAI,
			EmbeddingModel:    "text-embedding-3-small",
			MaxRetries:        3,
			TimeoutSeconds:    120,
		},
		Limits: LimitsConfig{
			MaxCallsPerMinute: 30,
			MaxDailyCostUSD:   25.0,
		},
		Cache: CacheConfig{
			Enabled:             true,
			TTLSeconds:          3600,
			SemanticEnabled:     true,
			SimilarityThreshold: 0.85,
			RedisHost:           "localhost",
			RedisPort:           6379,
		},
		Retrieval: RetrievalConfig{
			StrictThreshold:     1.0,
			FallbackThreshold:   1.4,
			MaxRerankCandidates: 20,
			MaxContextChars:     12000,
			DefaultResults:      5,
			RerankEnabled:       true,
		},
		Sync: SyncConfig{
			DocsDir:      "docs",
			MaxChunkSize: 1500,
			MinChunkSize: 50,
			BatchSize:    64,
			SkipFiles:    DefaultSkipFiles,
			SkipDirs:     DefaultSkipDirs,
			Extensions:   DefaultExtensions,
			MaxFileSize:  10 << 20,
		},
		Alerts: AlertsConfig{
			TimeWindowMinutes: 60,
			MinProbability:    0.7,
			SourceTypes:       []string{"INFO", "WARNING", "ERROR"},
			WhitelistIPs:      DefaultWhitelistIPs,
			IndexPattern:      "logs-*",
			ChartsEnabled:     true,
		},
		LogStore: LogStoreConfig{
			URL:            "http://localhost:9200",
			TimeoutSeconds: 30,
		},
		Case: CaseConfig{
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Port: 8088,
		},
		LogLevel:        "info",
		LogFormat:       "text",
		DebugTextLength: 500,
	}
}
