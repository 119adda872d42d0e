package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/cache"
)

type flakyEmbedder struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyEmbedder) Name() string { return "flaky" }

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection reset")
	}
	return []float32{1, 0}, nil
}

func TestResilientEmbedder_RetriesTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	r := NewResilientEmbedder(inner, WithRetries(3, time.Millisecond))

	vector, err := r.Embed(context.Background(), "claim")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vector) != 2 {
		t.Errorf("Unexpected vector: %v", vector)
	}
	if inner.calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", inner.calls.Load())
	}
}

func TestResilientEmbedder_ExhaustedRetriesAreUnavailable(t *testing.T) {
	inner := &flakyEmbedder{failures: 100}
	r := NewResilientEmbedder(inner, WithRetries(1, time.Millisecond))

	_, err := r.Embed(context.Background(), "claim")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("Expected ErrEmbeddingUnavailable, got %v", err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", inner.calls.Load())
	}
}

func TestResilientEmbedder_UsesCache(t *testing.T) {
	inner := &flakyEmbedder{}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := NewResilientEmbedder(inner, WithCache(c, time.Minute))

	for i := 0; i < 3; i++ {
		if _, err := r.Embed(context.Background(), "same text"); err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
	}
	if inner.calls.Load() != 1 {
		t.Errorf("Expected 1 provider call, got %d", inner.calls.Load())
	}
}

func TestResilientEmbedder_InvalidInputNotRetried(t *testing.T) {
	inner := &flakyEmbedder{}
	r := NewResilientEmbedder(inner, WithRetries(3, time.Millisecond))

	_, err := r.Embed(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if inner.calls.Load() != 0 {
		t.Errorf("Expected no provider calls, got %d", inner.calls.Load())
	}
}
