package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores embedding vectors keyed by provider and text
type Cache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vector []float32, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EmbeddingKey derives the cache key for text embedded by provider.
// Vectors from different providers or models never share a key.
func EmbeddingKey(provider, text string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "veracity:emb:v1:" + hex.EncodeToString(h.Sum(nil))
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
