package retrieve

import (
	"sort"

	"github.com/ppiankov/veracity/internal/model"
)

// Weights of the two retrieval channels in the hybrid score
type Weights struct {
	Vector  float64
	Keyword float64
}

// DefaultWeights treat semantic similarity as the primary signal
var DefaultWeights = Weights{Vector: 0.7, Keyword: 0.3}

// Hybrid combines a vector and a keyword score. A channel that did not
// find the source contributes 0.
func (w Weights) Hybrid(vector, keyword float64) float64 {
	return w.Vector*vector + w.Keyword*keyword
}

func (w Weights) valid() bool {
	return w.Vector >= 0 && w.Keyword >= 0 && w.Vector+w.Keyword > 0
}

// Fuse unions vector and keyword candidates by source id, scores each with
// w, and returns the best maxResults. Discovery order (vector hits first,
// then keyword-only hits) breaks ties.
func Fuse(vectorHits, keywordHits []model.RetrievalCandidate, w Weights, maxResults int) []model.RetrievalCandidate {
	byID := make(map[string]int, len(vectorHits)+len(keywordHits))
	fused := make([]model.RetrievalCandidate, 0, len(vectorHits)+len(keywordHits))

	for _, c := range vectorHits {
		if _, dup := byID[c.SourceID]; dup {
			continue
		}
		c.MatchType = model.MatchVector
		c.KeywordScore = nil
		byID[c.SourceID] = len(fused)
		fused = append(fused, c)
	}

	for _, c := range keywordHits {
		if i, ok := byID[c.SourceID]; ok {
			if fused[i].KeywordScore != nil {
				continue
			}
			score := c.Keyword()
			fused[i].KeywordScore = &score
			fused[i].MatchType = model.MatchHybrid
			if fused[i].Content == "" {
				fused[i].Content = c.Content
			}
			continue
		}
		c.MatchType = model.MatchKeyword
		c.VectorScore = nil
		byID[c.SourceID] = len(fused)
		fused = append(fused, c)
	}

	for i := range fused {
		fused[i].HybridScore = w.Hybrid(fused[i].Vector(), fused[i].Keyword())
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].HybridScore > fused[j].HybridScore
	})

	if maxResults >= 0 && len(fused) > maxResults {
		fused = fused[:maxResults]
	}
	return fused
}
