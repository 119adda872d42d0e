package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

func newOpenAIClient(config Config) (*openai.Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return openai.NewClientWithConfig(clientConfig), nil
}

// OpenAIEmbedder implements Embedder using the OpenAI embeddings API
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedder
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbedder{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name
func (e *OpenAIEmbedder) Name() string {
	return "openai/" + e.config.Model
}

// Embed generates an embedding using the OpenAI embeddings endpoint
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.config.timeout())
	defer cancel()

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 && strings.HasPrefix(e.config.Model, "text-embedding-3") {
		req.Dimensions = e.config.Dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctxWithTimeout, req)
	if err != nil {
		return nil, unavailable(e.Name(), err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, unavailable(e.Name(), errors.New("empty embedding response"))
	}

	return resp.Data[0].Embedding, nil
}

const sentimentPrompt = `Classify the overall sentiment of the following text.
Respond with a JSON object only, of the form:
{"label": "negative" | "neutral" | "positive", "confidence": <number between 0 and 1>}

Text:
%s`

// OpenAISentiment implements SentimentScorer with a chat completion model
type OpenAISentiment struct {
	client *openai.Client
	config Config
}

// NewOpenAISentiment creates a new chat-based sentiment scorer
func NewOpenAISentiment(config Config) (*OpenAISentiment, error) {
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	return &OpenAISentiment{
		client: client,
		config: config,
	}, nil
}

// Score asks the model for a sentiment label and confidence
func (s *OpenAISentiment) Score(ctx context.Context, text string) (Signal, error) {
	if strings.TrimSpace(text) == "" {
		return Signal{}, ErrInvalidInput
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a sentiment classifier. You only answer with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(sentimentPrompt, text),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   50,
		Temperature: 0,
	}

	resp, err := s.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrSentimentUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return Signal{}, fmt.Errorf("%w: no response from model", ErrSentimentUnavailable)
	}

	return parseSignal(resp.Choices[0].Message.Content)
}

// parseSignal reads {"label": ..., "confidence": ...} from a model reply
func parseSignal(content string) (Signal, error) {
	content = strings.TrimSpace(content)
	if !gjson.Valid(content) {
		return Signal{}, fmt.Errorf("malformed sentiment response: %q", content)
	}

	label := gjson.Get(content, "label")
	if !label.Exists() {
		return Signal{}, fmt.Errorf("sentiment response missing label: %q", content)
	}

	confidence := gjson.Get(content, "confidence").Float()
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return Signal{}, fmt.Errorf("sentiment confidence is not a finite number: %q", content)
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Signal{
		Sentiment:  ParseSentiment(label.String()),
		Confidence: confidence,
	}, nil
}
