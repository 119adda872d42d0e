package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultCompatHost = "http://localhost:11434/v1"

// CompatEmbedder talks to any OpenAI-compatible embedding server
// (ollama, llama.cpp, vLLM) through langchaingo
type CompatEmbedder struct {
	embedder embeddings.Embedder
	config   Config
}

// NewCompatEmbedder creates an embedder for an OpenAI-compatible endpoint
func NewCompatEmbedder(config Config) (*CompatEmbedder, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultCompatHost
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}

	// Local servers usually ignore the token but the client requires one
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &CompatEmbedder{
		embedder: embedder,
		config:   config,
	}, nil
}

// Name returns the provider name
func (e *CompatEmbedder) Name() string {
	return "compat/" + e.config.Model
}

// Embed generates an embedding for a single text
func (e *CompatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.config.timeout())
	defer cancel()

	vector, err := e.embedder.EmbedQuery(ctxWithTimeout, text)
	if err != nil {
		return nil, unavailable(e.Name(), err)
	}
	if len(vector) == 0 {
		return nil, unavailable(e.Name(), errEmptyVector)
	}

	return vector, nil
}
