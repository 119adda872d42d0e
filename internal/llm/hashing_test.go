package llm

import (
	"context"
	"errors"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(64)
	a, err := e.Embed(context.Background(), "Vaccines are tested for safety")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "Vaccines are tested for safety")

	if len(a) != 64 {
		t.Fatalf("Expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Vectors differ at %d", i)
		}
	}
	if math.Abs(cosine(a, a)-1) > 1e-6 {
		t.Errorf("Expected unit self-similarity, got %f", cosine(a, a))
	}
}

func TestHashingEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()
	claim, _ := e.Embed(ctx, "vaccines cause autism in children")
	related, _ := e.Embed(ctx, "studies show vaccines do not cause autism")
	unrelated, _ := e.Embed(ctx, "the stock market closed higher on friday")

	if cosine(claim, related) <= cosine(claim, unrelated) {
		t.Errorf("Expected related text to score higher: related=%f unrelated=%f",
			cosine(claim, related), cosine(claim, unrelated))
	}
}

func TestHashingEmbedder_EmptyInput(t *testing.T) {
	_, err := NewHashingEmbedder(0).Embed(context.Background(), "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if NewHashingEmbedder(0).Name() != "hashing/384" {
		t.Errorf("Unexpected default name: %s", NewHashingEmbedder(0).Name())
	}
}
