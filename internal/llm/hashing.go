package llm

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/ppiankov/veracity/internal/extract"
)

const defaultHashingDims = 384

var errEmptyVector = errors.New("provider returned an empty vector")

// HashingEmbedder is an offline embedder that projects tokens into a
// fixed number of signed buckets. Texts sharing vocabulary land close
// together, which is enough for local corpora and tests.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a hashing embedder with dims buckets
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = defaultHashingDims
	}
	return &HashingEmbedder{dims: dims}
}

// Name returns the provider name
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing/%d", e.dims)
}

// Embed returns an L2-normalized bag-of-tokens vector.
// Text without any usable token yields the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable(e.Name(), err)
	}

	vector := make([]float32, e.dims)
	for _, token := range extract.Tokenize(strings.ToLower(text), true) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dims))
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vector[bucket] += sign
	}

	normalize(vector)
	return vector, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
