package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// NewEmbedder creates an embedding provider based on configuration
func NewEmbedder(config Config) (Embedder, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIEmbedder(config)

	case "compat", "ollama", "local":
		return NewCompatEmbedder(config)

	case "hashing", "":
		return NewHashingEmbedder(config.Dimensions), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, compat, hashing)", config.Provider)
	}
}

// NewSentimentScorer creates the auxiliary sentiment model.
// Returns nil when no provider is configured.
func NewSentimentScorer(config Config) (SentimentScorer, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAISentiment(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown sentiment provider: %s (supported: openai)", config.Provider)
	}
}

// EmbeddingConfigFromModel converts model.EmbeddingConfig to llm.Config
func EmbeddingConfigFromModel(c model.EmbeddingConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Dimensions: c.Dimensions,
		Timeout:    c.Timeout,
	}
}

// SentimentConfigFromModel converts model.SentimentConfig to llm.Config
func SentimentConfigFromModel(c model.SentimentConfig) Config {
	return Config{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}
