package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmbeddingUnavailable is returned when the embedding provider cannot be reached
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrInvalidInput is returned for empty embedding input
	ErrInvalidInput = errors.New("embedding input is empty")

	// ErrSentimentUnavailable is returned when the sentiment model cannot be reached
	ErrSentimentUnavailable = errors.New("sentiment provider unavailable")
)

// Embedder turns text into a fixed-length vector
type Embedder interface {
	// Name identifies the provider and model, used for cache keys and rate limiting
	Name() string

	// Embed returns the embedding of text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Sentiment is the closed set of auxiliary sentiment labels
type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentNegative
	SentimentPositive
)

func (s Sentiment) String() string {
	switch s {
	case SentimentNegative:
		return "negative"
	case SentimentPositive:
		return "positive"
	default:
		return "neutral"
	}
}

// ParseSentiment maps a model label onto the closed variant.
// Unknown labels map to neutral.
func ParseSentiment(label string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "negative", "neg", "label_0":
		return SentimentNegative
	case "positive", "pos", "label_2":
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// Signal is one auxiliary sentiment reading
type Signal struct {
	Sentiment  Sentiment
	Confidence float64 // 0.0-1.0
}

// SentimentScorer is the optional auxiliary signal model
type SentimentScorer interface {
	Score(ctx context.Context, text string) (Signal, error)
}

// Config holds embedding or sentiment provider configuration
type Config struct {
	// Provider name: "openai", "compat", "hashing"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom or local OpenAI-compatible endpoints
	BaseURL string

	// Dimensions of the hashing embedder, and the requested size for OpenAI
	Dimensions int

	// Timeout for a single API request
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.Timeout
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrEmbeddingUnavailable, provider, err)
}
