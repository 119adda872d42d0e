// Package retrieve finds evidence for a claim over a vector channel and a
// keyword channel and fuses the two rankings.
package retrieve

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
	"go.uber.org/zap"
)

// Payload keys written with source vectors
const (
	PayloadTitle       = "title"
	PayloadContent     = "content"
	PayloadSourceName  = "source_name"
	PayloadSourceURL   = "source_url"
	PayloadReliability = "reliability"
	PayloadTopic       = "topic"
)

// Degradation describes what a retrieval had to do without. The zero
// value means both channels ran.
type Degradation struct {
	EmbeddingUnavailable bool
	IndexUnavailable     bool
	CorpusUnavailable    bool
	NoEvidence           bool
	Reasons              []string
}

// Degraded reports whether any channel failed
func (d Degradation) Degraded() bool {
	return d.EmbeddingUnavailable || d.IndexUnavailable || d.CorpusUnavailable
}

func (d *Degradation) add(reason string) {
	d.Reasons = append(d.Reasons, reason)
}

// Options tune retrieval
type Options struct {
	SimilarityThreshold float64
	Weights             Weights
	MaxKeywords         int
	CorpusLimit         int // keyword channel scan cap, 0 scans every source
	Timeout             time.Duration
}

// DefaultOptions returns the standard retrieval settings
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.7,
		Weights:             DefaultWeights,
		MaxKeywords:         5,
		Timeout:             10 * time.Second,
	}
}

// OptionsFromConfig builds options from configuration, keeping defaults for
// unset values. A negative similarity threshold is unset; 0 accepts every
// vector hit.
func OptionsFromConfig(cfg model.RetrievalConfig, timeout time.Duration) Options {
	opts := DefaultOptions()
	if cfg.SimilarityThreshold >= 0 {
		opts.SimilarityThreshold = cfg.SimilarityThreshold
	}
	if w := (Weights{Vector: cfg.VectorWeight, Keyword: cfg.KeywordWeight}); w.valid() {
		opts.Weights = w
	}
	if cfg.MaxKeywords > 0 {
		opts.MaxKeywords = cfg.MaxKeywords
	}
	if cfg.CorpusLimit > 0 {
		opts.CorpusLimit = cfg.CorpusLimit
	}
	if timeout > 0 {
		opts.Timeout = timeout
	}
	return opts
}

// Retriever runs hybrid evidence retrieval
type Retriever struct {
	embedder llm.Embedder
	index    index.VectorIndex
	corpus   store.Corpus
	opts     Options
	logger   *zap.Logger
}

// NewRetriever creates a retriever. embedder and idx may be nil, in which
// case only the keyword channel runs.
func NewRetriever(embedder llm.Embedder, idx index.VectorIndex, corpus store.Corpus, opts Options, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.Weights.valid() {
		opts.Weights = DefaultWeights
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Retriever{
		embedder: embedder,
		index:    idx,
		corpus:   corpus,
		opts:     opts,
		logger:   logger,
	}
}

// Embed embeds text with the configured timeout
func (r *Retriever) Embed(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil {
		return nil, llm.ErrEmbeddingUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, llm.ErrInvalidInput) {
			return nil, err
		}
		if !errors.Is(err, llm.ErrEmbeddingUnavailable) {
			err = errors.Join(llm.ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}
	return vector, nil
}

// Retrieve embeds the claim and returns up to maxResults fused candidates
func (r *Retriever) Retrieve(ctx context.Context, claimText string, maxResults int) ([]model.RetrievalCandidate, Degradation) {
	vector, err := r.Embed(ctx, extract.PreprocessForEmbedding(claimText))
	var deg Degradation
	if err != nil {
		deg.EmbeddingUnavailable = true
		deg.add("embedding unavailable: " + err.Error())
		r.logger.Warn("claim embedding failed, using keyword channel only", zap.Error(err))
	}

	candidates, d := r.RetrieveWithVector(ctx, claimText, vector, maxResults)
	d.EmbeddingUnavailable = d.EmbeddingUnavailable || deg.EmbeddingUnavailable
	d.Reasons = append(deg.Reasons, d.Reasons...)
	return candidates, d
}

// RetrieveWithVector runs retrieval with an already computed claim
// embedding. A nil vector skips the vector channel.
func (r *Retriever) RetrieveWithVector(ctx context.Context, claimText string, vector []float32, maxResults int) ([]model.RetrievalCandidate, Degradation) {
	var deg Degradation
	if maxResults <= 0 {
		maxResults = 5
	}
	limit := 2 * maxResults

	var vectorHits []model.RetrievalCandidate
	if vector == nil {
		deg.EmbeddingUnavailable = true
	} else {
		hits, err := r.vectorSearch(ctx, vector, limit)
		if err != nil {
			deg.IndexUnavailable = true
			deg.add("vector index unavailable: " + err.Error())
			r.logger.Warn("vector search failed", zap.Error(err))
		}
		vectorHits = hits
	}

	keywordHits, err := r.keywordSearch(ctx, claimText, limit)
	if err != nil {
		deg.CorpusUnavailable = true
		deg.add("corpus unavailable: " + err.Error())
		r.logger.Warn("keyword search failed", zap.Error(err))
	}

	candidates := Fuse(vectorHits, keywordHits, r.opts.Weights, maxResults)
	if len(candidates) == 0 {
		deg.NoEvidence = true
	}

	r.logger.Debug("retrieved evidence",
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("keyword_hits", len(keywordHits)),
		zap.Int("results", len(candidates)))

	return candidates, deg
}

func (r *Retriever) vectorSearch(ctx context.Context, vector []float32, limit int) ([]model.RetrievalCandidate, error) {
	if r.index == nil {
		return nil, index.ErrUnavailable
	}

	qctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	hits, err := r.index.QueryNearest(qctx, vector, limit, r.opts.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.RetrievalCandidate, 0, len(hits))
	for _, hit := range hits {
		score := hit.Score
		c := model.RetrievalCandidate{
			SourceID:    hit.ID,
			VectorScore: &score,
			Title:       hit.Payload[PayloadTitle],
			Content:     hit.Payload[PayloadContent],
			SourceName:  hit.Payload[PayloadSourceName],
			SourceURL:   hit.Payload[PayloadSourceURL],
		}
		if rating, err := strconv.ParseFloat(hit.Payload[PayloadReliability], 64); err == nil {
			c.Reliability = rating
		}
		if c.Content == "" {
			r.hydrate(ctx, &c)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// hydrate fills a vector hit from the corpus when its payload has no content
func (r *Retriever) hydrate(ctx context.Context, c *model.RetrievalCandidate) {
	if r.corpus == nil {
		return
	}
	src, err := r.corpus.GetSource(ctx, c.SourceID)
	if err != nil {
		r.logger.Debug("could not hydrate vector hit", zap.String("source_id", c.SourceID), zap.Error(err))
		return
	}
	c.Title = src.Title
	c.Content = src.Content
	c.SourceName = src.SourceName
	c.SourceURL = src.SourceURL
	c.Reliability = src.ReliabilityRating
}

func (r *Retriever) keywordSearch(ctx context.Context, claimText string, limit int) ([]model.RetrievalCandidate, error) {
	keywords := extract.Keywords(claimText, r.opts.MaxKeywords)
	if len(keywords) == 0 || r.corpus == nil {
		return nil, nil
	}

	sources, err := r.corpus.ListSources(ctx, "", r.opts.CorpusLimit)
	if err != nil {
		return nil, err
	}

	return KeywordMatches(keywords, sources, limit), nil
}

// KeywordMatches scores each source by the fraction of keywords found in
// its title and content and returns the best limit sources with a
// non-zero score. Equal scores keep corpus order.
func KeywordMatches(keywords []string, sources []model.EvidenceSource, limit int) []model.RetrievalCandidate {
	if len(keywords) == 0 {
		return nil
	}

	var matches []model.RetrievalCandidate
	for _, src := range sources {
		text := strings.ToLower(src.Title + " " + src.Content)
		found := 0
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				found++
			}
		}
		if found == 0 {
			continue
		}

		score := float64(found) / float64(len(keywords))
		matches = append(matches, model.RetrievalCandidate{
			SourceID:     src.ID,
			KeywordScore: &score,
			Title:        src.Title,
			Content:      src.Content,
			SourceName:   src.SourceName,
			SourceURL:    src.SourceURL,
			Reliability:  src.ReliabilityRating,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Keyword() > matches[j].Keyword()
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
