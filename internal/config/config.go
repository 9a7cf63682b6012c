package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for X-me
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Sectors   SectorsConfig   `mapstructure:"sectors"`
	Orchestra OrchestraConfig `mapstructure:"orchestrator"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// UploadsConfig holds upload storage configuration
type UploadsConfig struct {
	Dir          string `mapstructure:"dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	MaxFileSize  int64  `mapstructure:"max_file_size"`
	Watch        bool   `mapstructure:"watch"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	ChatModel      string  `mapstructure:"chat_model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Temperature    float64 `mapstructure:"temperature"`
	Encoding       string  `mapstructure:"encoding"`
}

// SearchConfig holds web search configuration
type SearchConfig struct {
	Provider      string   `mapstructure:"provider"`
	SearxngURL    string   `mapstructure:"searxng_url"`
	SerperURL     string   `mapstructure:"serper_url"`
	SerperAPIKey  string   `mapstructure:"serper_api_key"`
	Engines       []string `mapstructure:"engines"`
	ImageEngines  []string `mapstructure:"image_engines"`
	Language      string   `mapstructure:"language"`
	MaxResults    int      `mapstructure:"max_results"`
	TimeoutSecs   int      `mapstructure:"timeout_secs"`
	FetchMaxBytes int64    `mapstructure:"fetch_max_bytes"`
}

// QdrantConfig holds vector store configuration
type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
	Dimension  int    `mapstructure:"dimension"`
}

// SectorsConfig holds sector documentation configuration
type SectorsConfig struct {
	CatalogPath      string `mapstructure:"catalog_path"`
	DocumentationDir string `mapstructure:"documentation_dir"`
}

// OrchestraConfig holds answer orchestration tuning
type OrchestraConfig struct {
	SearchWeb       bool    `mapstructure:"search_web"`
	SearchExperts   bool    `mapstructure:"search_experts"`
	Rerank          bool    `mapstructure:"rerank"`
	RerankThreshold float64 `mapstructure:"rerank_threshold"`
	MaxDocs         int     `mapstructure:"max_docs"`
	ContextTokens   int     `mapstructure:"context_tokens"`
	UploadTopK      int     `mapstructure:"upload_top_k"`
	SectorTopK      int     `mapstructure:"sector_top_k"`
	ExpertLimit     int     `mapstructure:"expert_limit"`
}

// Load loads configuration from .env, file and environment
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: XME_LLM_API_KEY -> llm.api_key
	v.SetEnvPrefix("XME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.base_url", "http://localhost:3001")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.path", "./data/xme.db")

	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.chunk_size", 1000)
	v.SetDefault("uploads.chunk_overlap", 100)
	v.SetDefault("uploads.max_file_size", 20<<20)
	v.SetDefault("uploads.watch", true)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.encoding", "cl100k_base")

	v.SetDefault("search.provider", "searxng")
	v.SetDefault("search.searxng_url", "http://localhost:8080")
	v.SetDefault("search.serper_url", "https://google.serper.dev")
	v.SetDefault("search.serper_api_key", "")
	v.SetDefault("search.engines", []string{"bing", "google"})
	v.SetDefault("search.image_engines", []string{"bing images", "google images"})
	v.SetDefault("search.language", "fr")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.fetch_max_bytes", 2<<20)

	v.SetDefault("qdrant.host", "")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("qdrant.collection", "sector_documentation")
	v.SetDefault("qdrant.dimension", 1536)

	v.SetDefault("sectors.catalog_path", "")
	v.SetDefault("sectors.documentation_dir", "./documentation")

	v.SetDefault("orchestrator.search_web", true)
	v.SetDefault("orchestrator.search_experts", true)
	v.SetDefault("orchestrator.rerank", true)
	v.SetDefault("orchestrator.rerank_threshold", 0.3)
	v.SetDefault("orchestrator.max_docs", 15)
	v.SetDefault("orchestrator.context_tokens", 6000)
	v.SetDefault("orchestrator.upload_top_k", 10)
	v.SetDefault("orchestrator.sector_top_k", 10)
	v.SetDefault("orchestrator.expert_limit", 3)
}

// Validate checks values that would make the server misbehave
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Uploads.ChunkSize <= 0 {
		return fmt.Errorf("uploads.chunk_size must be positive")
	}
	if c.Uploads.ChunkOverlap < 0 || c.Uploads.ChunkOverlap >= c.Uploads.ChunkSize {
		return fmt.Errorf("uploads.chunk_overlap must be in [0, chunk_size)")
	}
	switch c.Search.Provider {
	case "searxng", "serper", "none":
	default:
		return fmt.Errorf("unknown search.provider %q", c.Search.Provider)
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HasLLM reports whether a hosted model is configured
func (c *Config) HasLLM() bool {
	return c.LLM.Provider != "mock" && c.LLM.APIKey != ""
}

// HasQdrant reports whether a Qdrant endpoint is configured
func (c *Config) HasQdrant() bool {
	return c.Qdrant.Host != ""
}
