package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete runtime configuration
type Config struct {
	Storage      StorageConfig      `yaml:"storage" mapstructure:"storage"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Sentiment    SentimentConfig    `yaml:"sentiment" mapstructure:"sentiment"`
	Retrieval    RetrievalConfig    `yaml:"retrieval" mapstructure:"retrieval"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Reliability  ReliabilityConfig  `yaml:"reliability" mapstructure:"reliability"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// StorageConfig locates the sqlite database and the vector index
type StorageConfig struct {
	DBPath   string `yaml:"db_path" mapstructure:"db_path"`
	IndexDir string `yaml:"index_dir" mapstructure:"index_dir"`
}

// EmbeddingConfig selects and tunes the embedding provider
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"` // openai, compat, hashing
	Model      string        `yaml:"model" mapstructure:"model"`
	APIKey     string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int           `yaml:"dimensions" mapstructure:"dimensions"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries uint          `yaml:"max_retries" mapstructure:"max_retries"`
}

// SentimentConfig configures the optional auxiliary sentiment signal
type SentimentConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider"` // "" disables, openai
	Model    string        `yaml:"model" mapstructure:"model"`
	APIKey   string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RetrievalConfig holds hybrid retrieval parameters
type RetrievalConfig struct {
	MaxResults          int     `yaml:"max_results" mapstructure:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	VectorWeight        float64 `yaml:"vector_weight" mapstructure:"vector_weight"`
	KeywordWeight       float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	MaxKeywords         int     `yaml:"max_keywords" mapstructure:"max_keywords"`
	CorpusLimit         int     `yaml:"corpus_limit" mapstructure:"corpus_limit"` // 0 scans the whole corpus
	SnippetLength       int     `yaml:"snippet_length" mapstructure:"snippet_length"`
}

// CacheConfig controls embedding caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // concurrent claim analyses
	IndexWorkers int `yaml:"index_workers" mapstructure:"index_workers"` // concurrent corpus embeddings
}

// RateLimitingConfig bounds calls to the embedding provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig is used when fetching or verifying source pages
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SourceRating assigns a static reliability to a provenance name
type SourceRating struct {
	Name   string  `yaml:"name" mapstructure:"name"`
	Rating float64 `yaml:"rating" mapstructure:"rating"`
}

// ReliabilityConfig is the provenance reliability lookup table.
// Sources are matched in order by case-insensitive substring.
type ReliabilityConfig struct {
	Sources []SourceRating `yaml:"sources" mapstructure:"sources"`
	Unknown float64        `yaml:"unknown" mapstructure:"unknown"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".veracity")

	return &Config{
		Storage: StorageConfig{
			DBPath:   filepath.Join(base, "veracity.db"),
			IndexDir: filepath.Join(base, "index"),
		},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Model:      "text-embedding-3-small",
			Dimensions: 384,
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Sentiment: SentimentConfig{
			Model:   "gpt-4o-mini",
			Timeout: 10 * time.Second,
		},
		Retrieval: RetrievalConfig{
			MaxResults:          5,
			SimilarityThreshold: 0.7,
			VectorWeight:        0.7,
			KeywordWeight:       0.3,
			MaxKeywords:         5,
			SnippetLength:       200,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(base, "cache"),
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			IndexWorkers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 10,
			BurstSize:         5,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Veracity/0.1 (+https://github.com/ppiankov/veracity)",
			MaxBodyBytes: 2_000_000,
		},
		Reliability: ReliabilityConfig{
			Sources: []SourceRating{
				{Name: "snopes", Rating: 0.95},
				{Name: "politifact", Rating: 0.90},
				{Name: "factcheck.org", Rating: 0.88},
				{Name: "reuters", Rating: 0.85},
				{Name: "ap news", Rating: 0.85},
				{Name: "bbc", Rating: 0.82},
				{Name: "cnn", Rating: 0.75},
				{Name: "fox news", Rating: 0.70},
			},
			Unknown: 0.50,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}
