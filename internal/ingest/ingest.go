// Package ingest loads evidence sources into the corpus and keeps their
// embeddings in the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/retrieve"
	"github.com/ppiankov/veracity/internal/validate"
	"go.uber.org/zap"
)

// ErrStoreRequired is returned when no source store is given
var ErrStoreRequired = errors.New("ingest: source store is required")

// SourceStore is the corpus the ingester writes to
type SourceStore interface {
	AddSource(ctx context.Context, src *model.EvidenceSource) error
	ListSources(ctx context.Context, topic string, limit int) ([]model.EvidenceSource, error)
	SetVerified(ctx context.Context, id string, verified bool) error
}

// PageFetcher fetches a source page
type PageFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*pipeline.FetchResult, error)
}

// Ingester imports, indexes and verifies evidence sources
type Ingester struct {
	store       SourceStore
	index       index.VectorIndex // nil disables indexing
	embedder    llm.Embedder      // nil disables indexing
	reliability *validate.ReliabilityTable
	fetcher     PageFetcher
	verifier    *validate.Verifier
	pool        *ants.Pool
	logger      *zap.Logger
}

// Option configures an Ingester
type Option func(*Ingester) error

// WithPoolSize sets how many sources are embedded concurrently
func WithPoolSize(size int) Option {
	return func(i *Ingester) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return fmt.Errorf("create index pool: %w", err)
		}
		if i.pool != nil {
			i.pool.Release()
		}
		i.pool = pool
		return nil
	}
}

// WithIndex enables embedding sources into idx
func WithIndex(idx index.VectorIndex, embedder llm.Embedder) Option {
	return func(i *Ingester) error {
		i.index = idx
		i.embedder = embedder
		return nil
	}
}

// WithReliability sets the provenance reliability table
func WithReliability(table *validate.ReliabilityTable) Option {
	return func(i *Ingester) error {
		if table != nil {
			i.reliability = table
		}
		return nil
	}
}

// WithFetcher enables URL ingestion
func WithFetcher(f PageFetcher) Option {
	return func(i *Ingester) error {
		i.fetcher = f
		return nil
	}
}

// WithVerifier enables source URL verification
func WithVerifier(v *validate.Verifier) Option {
	return func(i *Ingester) error {
		i.verifier = v
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Ingester) error {
		if logger != nil {
			i.logger = logger
		}
		return nil
	}
}

// New creates an ingester
func New(store SourceStore, opts ...Option) (*Ingester, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	i := &Ingester{
		store:       store,
		reliability: validate.NewReliabilityTable(nil),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			i.Release()
			return nil, err
		}
	}

	if i.pool == nil {
		size := runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return nil, fmt.Errorf("create index pool: %w", err)
		}
		i.pool = pool
	}

	return i, nil
}

// Release stops the worker pool
func (i *Ingester) Release() {
	if i.pool != nil {
		i.pool.Release()
	}
}

// IndexSources embeds every source and upserts it into the vector index.
// It returns how many were indexed; failures are aggregated.
func (i *Ingester) IndexSources(ctx context.Context, sources []model.EvidenceSource) (int, error) {
	if i.index == nil || i.embedder == nil || len(sources) == 0 {
		return 0, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		indexed int
		errs    *multierror.Error
	)

	for _, src := range sources {
		wg.Add(1)
		err := i.pool.Submit(func() {
			defer wg.Done()
			err := i.indexSource(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("source %s: %w", src.ID, err))
				return
			}
			indexed++
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = multierror.Append(errs, fmt.Errorf("source %s: submit: %w", src.ID, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	i.logger.Info("indexed sources", zap.Int("indexed", indexed), zap.Int("total", len(sources)))
	return indexed, errs.ErrorOrNil()
}

// Reindex embeds every stored source, optionally limited to one topic
func (i *Ingester) Reindex(ctx context.Context, topic string) (int, error) {
	sources, err := i.store.ListSources(ctx, topic, 0)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	return i.IndexSources(ctx, sources)
}

func (i *Ingester) indexSource(ctx context.Context, src model.EvidenceSource) error {
	text := extract.PreprocessForEmbedding(src.Title + ". " + src.Content)
	vector, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := i.index.Upsert(ctx, src.ID, vector, SourcePayload(src)); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// SourcePayload is the metadata stored with a source vector
func SourcePayload(src model.EvidenceSource) map[string]string {
	return map[string]string{
		retrieve.PayloadTitle:       src.Title,
		retrieve.PayloadContent:     src.Content,
		retrieve.PayloadSourceName:  src.SourceName,
		retrieve.PayloadSourceURL:   src.SourceURL,
		retrieve.PayloadReliability: strconv.FormatFloat(src.ReliabilityRating, 'f', -1, 64),
		retrieve.PayloadTopic:       src.Topic,
	}
}
