package pipeline

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/retrieve"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/worker"
	"go.uber.org/zap"
)

// Pipeline owns every component built from one configuration
type Pipeline struct {
	Config    *model.Config
	DB        *store.DB
	Index     *index.Store
	Embedder  llm.Embedder
	Retriever *retrieve.Retriever
	Analyzer  *Analyzer
	Fetcher   *Fetcher

	logger *zap.Logger
}

// NewPipeline opens storage and wires the analysis components from cfg
func NewPipeline(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(cfg.Storage.IndexDir, false, logger.Named("index"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	embedder, err := NewEmbedder(cfg, logger)
	if err != nil {
		_ = idx.Close()
		_ = db.Close()
		return nil, err
	}

	// The sentiment signal is optional; a broken provider only loses it
	var sentiment llm.SentimentScorer
	if s, err := llm.NewSentimentScorer(llm.SentimentConfigFromModel(cfg.Sentiment)); err != nil {
		logger.Warn("sentiment provider disabled", zap.Error(err))
	} else if s != nil {
		sentiment = s
	}

	retriever := retrieve.NewRetriever(
		embedder,
		idx.Collection(index.Sources),
		db,
		retrieve.OptionsFromConfig(cfg.Retrieval, cfg.Embedding.Timeout),
		logger.Named("retrieve"),
	)

	classifier := score.NewClassifier(sentiment, cfg.Sentiment.Timeout, logger.Named("score"))

	analyzer := NewAnalyzer(db, retriever, idx.Collection(index.Claims), classifier, Options{
		MaxResults:    cfg.Retrieval.MaxResults,
		SnippetLength: cfg.Retrieval.SnippetLength,
		Workers:       cfg.Concurrency.Workers,
		Timeout:       cfg.Embedding.Timeout,
	}, logger.Named("analyze"))

	return &Pipeline{
		Config:    cfg,
		DB:        db,
		Index:     idx,
		Embedder:  embedder,
		Retriever: retriever,
		Analyzer:  analyzer,
		Fetcher:   NewFetcher(cfg.HTTP, worker.NewLimiter(1, 1), true),
		logger:    logger,
	}, nil
}

// NewEmbedder builds the configured embedding provider behind the
// caching, rate limiting and retry wrapper
func NewEmbedder(cfg *model.Config, logger *zap.Logger) (llm.Embedder, error) {
	inner, err := llm.NewEmbedder(llm.EmbeddingConfigFromModel(cfg.Embedding))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	opts := []llm.Option{
		llm.WithRetries(cfg.Embedding.MaxRetries, 0),
		llm.WithRateLimit(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		llm.WithLogger(logger.Named("embed")),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, llm.WithCache(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL), 0))
	}

	return llm.NewResilientEmbedder(inner, opts...), nil
}

// Close releases the index and the database
func (p *Pipeline) Close() error {
	var result *multierror.Error
	if err := p.Index.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close index: %w", err))
	}
	if err := p.DB.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", err))
	}
	return result.ErrorOrNil()
}
