package llm

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ResilientEmbedder wraps an Embedder with caching, rate limiting and retries.
// Every failure it returns satisfies errors.Is(err, ErrEmbeddingUnavailable)
// except ErrInvalidInput.
type ResilientEmbedder struct {
	inner      Embedder
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    *rate.Limiter
	maxRetries uint64
	backoff    time.Duration
	logger     *zap.Logger
}

// Option configures a ResilientEmbedder
type Option func(*ResilientEmbedder)

// WithCache stores successful embeddings in c
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *ResilientEmbedder) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// WithRateLimit bounds outgoing provider calls
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(r *ResilientEmbedder) {
		if requestsPerSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRetries sets the number of retries after the first attempt
func WithRetries(n uint, backoff time.Duration) Option {
	return func(r *ResilientEmbedder) {
		r.maxRetries = uint64(n)
		if backoff > 0 {
			r.backoff = backoff
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *ResilientEmbedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResilientEmbedder wraps inner
func NewResilientEmbedder(inner Embedder, opts ...Option) *ResilientEmbedder {
	r := &ResilientEmbedder{
		inner:   inner,
		backoff: 200 * time.Millisecond,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the wrapped provider name
func (r *ResilientEmbedder) Name() string {
	return r.inner.Name()
}

// Embed returns a cached vector or asks the provider, retrying transient failures
func (r *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	key := cache.EmbeddingKey(r.inner.Name(), text)
	if r.cache != nil {
		if vector, ok := r.cache.Get(key); ok {
			return vector, nil
		}
	}

	var vector []float32
	b := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		v, err := r.inner.Embed(ctx, text)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) || ctx.Err() != nil {
				return err
			}
			r.logger.Debug("embedding attempt failed",
				zap.String("provider", r.inner.Name()),
				zap.Error(err))
			return retry.RetryableError(err)
		}

		if err := validVector(v); err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		if errors.Is(err, ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, unavailable(r.inner.Name(), err)
	}

	if r.cache != nil {
		if err := r.cache.Set(key, vector, r.cacheTTL); err != nil {
			r.logger.Warn("failed to cache embedding", zap.Error(err))
		}
	}

	return vector, nil
}

func validVector(v []float32) error {
	if len(v) == 0 {
		return errEmptyVector
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return errors.New("provider returned a non-finite vector")
		}
	}
	return nil
}
