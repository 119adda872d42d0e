package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

type fakeEmbedder struct {
	vector []float32
	err    error
	block  bool
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.vector, f.err
}

type fakeIndex struct {
	hits    []index.Hit
	err     error
	gotK    int
	gotThr  float64
	queries int
}

func (f *fakeIndex) QueryNearest(ctx context.Context, vector []float32, k int, threshold float64) ([]index.Hit, error) {
	f.queries++
	f.gotK, f.gotThr = k, threshold
	return f.hits, f.err
}

func (f *fakeIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]string) error {
	return nil
}

type fakeCorpus struct {
	sources  []model.EvidenceSource
	err      error
	gotLimit int
}

func (f *fakeCorpus) ListSources(ctx context.Context, topic string, limit int) ([]model.EvidenceSource, error) {
	f.gotLimit = limit
	return f.sources, f.err
}

func (f *fakeCorpus) GetSource(ctx context.Context, id string) (*model.EvidenceSource, error) {
	for _, s := range f.sources {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

var testCorpus = []model.EvidenceSource{
	{ID: "s1", Title: "Vaccines and autism", Content: "Large studies found vaccines do not cause autism in children.", SourceName: "Snopes", ReliabilityRating: 0.95},
	{ID: "s2", Title: "Flat earth", Content: "The earth is an oblate spheroid, as satellite imagery shows.", SourceName: "Reuters", ReliabilityRating: 0.85},
	{ID: "s3", Title: "Childhood vaccines schedule", Content: "The schedule for children is reviewed every year.", SourceName: "BBC", ReliabilityRating: 0.82},
}

func TestWeights_Hybrid(t *testing.T) {
	assert.InDelta(t, 0.63, DefaultWeights.Hybrid(0.9, 0.0), 1e-9)
	assert.InDelta(t, 0.65, DefaultWeights.Hybrid(0.5, 1.0), 1e-9)
}

func TestFuse_DocumentedRanking(t *testing.T) {
	// 0.9/0.0 scores 0.63 and 0.5/1.0 scores 0.65 with 0.7/0.3 weights
	vector := []model.RetrievalCandidate{
		{SourceID: "semantic", VectorScore: ptr(0.9)},
		{SourceID: "both", VectorScore: ptr(0.5)},
	}
	keyword := []model.RetrievalCandidate{
		{SourceID: "both", KeywordScore: ptr(1.0)},
	}

	fused := Fuse(vector, keyword, DefaultWeights, 5)
	require.Len(t, fused, 2)
	assert.Equal(t, "both", fused[0].SourceID)
	assert.Equal(t, model.MatchHybrid, fused[0].MatchType)
	assert.InDelta(t, 0.65, fused[0].HybridScore, 1e-9)
	assert.Equal(t, "semantic", fused[1].SourceID)
	assert.Equal(t, model.MatchVector, fused[1].MatchType)
	assert.InDelta(t, 0.63, fused[1].HybridScore, 1e-9)

	// Raising the semantic-only score to 0.95 gives 0.665, which outranks 0.65
	vector[0].VectorScore = ptr(0.95)
	fused = Fuse(vector, keyword, DefaultWeights, 5)
	assert.Equal(t, "semantic", fused[0].SourceID)
	assert.InDelta(t, 0.665, fused[0].HybridScore, 1e-9)
}

func TestFuse_Monotonic(t *testing.T) {
	steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	for _, fixed := range steps {
		prevV, prevK := -1.0, -1.0
		for _, s := range steps {
			byVector := Fuse(
				[]model.RetrievalCandidate{{SourceID: "x", VectorScore: ptr(s)}},
				[]model.RetrievalCandidate{{SourceID: "x", KeywordScore: ptr(fixed)}},
				DefaultWeights, 1)[0].HybridScore
			byKeyword := Fuse(
				[]model.RetrievalCandidate{{SourceID: "x", VectorScore: ptr(fixed)}},
				[]model.RetrievalCandidate{{SourceID: "x", KeywordScore: ptr(s)}},
				DefaultWeights, 1)[0].HybridScore

			assert.GreaterOrEqual(t, byVector, prevV)
			assert.GreaterOrEqual(t, byKeyword, prevK)
			prevV, prevK = byVector, byKeyword
		}
	}
}

func TestFuse_TiesKeepDiscoveryOrder(t *testing.T) {
	vector := []model.RetrievalCandidate{{SourceID: "v", VectorScore: ptr(0.3)}}
	keyword := []model.RetrievalCandidate{{SourceID: "k", KeywordScore: ptr(0.7)}}

	fused := Fuse(vector, keyword, DefaultWeights, 5)
	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].HybridScore, fused[1].HybridScore, 1e-9)
	assert.Equal(t, "v", fused[0].SourceID)
	assert.Equal(t, model.MatchKeyword, fused[1].MatchType)
	assert.Nil(t, fused[1].VectorScore)
}

func TestFuse_Truncates(t *testing.T) {
	var keyword []model.RetrievalCandidate
	for i := 0; i < 10; i++ {
		keyword = append(keyword, model.RetrievalCandidate{SourceID: string(rune('a' + i)), KeywordScore: ptr(float64(i) / 10)})
	}
	fused := Fuse(nil, keyword, DefaultWeights, 3)
	require.Len(t, fused, 3)
	assert.Equal(t, "j", fused[0].SourceID)
}

func TestKeywordMatches(t *testing.T) {
	matches := KeywordMatches([]string{"vaccines", "autism", "children", "cause"}, testCorpus, 10)

	require.Len(t, matches, 2)
	assert.Equal(t, "s1", matches[0].SourceID)
	assert.InDelta(t, 1.0, matches[0].Keyword(), 1e-9)
	assert.Equal(t, "s3", matches[1].SourceID)
	assert.InDelta(t, 0.5, matches[1].Keyword(), 1e-9)
	assert.Equal(t, 0.82, matches[1].Reliability)

	assert.Nil(t, KeywordMatches(nil, testCorpus, 10))
}

func TestRetrieve_Hybrid(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		{ID: "s2", Score: 0.9, Payload: map[string]string{PayloadTitle: "Flat earth", PayloadContent: "The earth is round."}},
		{ID: "s1", Score: 0.8},
	}}
	r := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, idx, &fakeCorpus{sources: testCorpus}, DefaultOptions(), nil)

	candidates, deg := r.Retrieve(context.Background(), "Vaccines cause autism in children", 5)

	assert.False(t, deg.Degraded())
	assert.False(t, deg.NoEvidence)
	assert.Equal(t, 10, idx.gotK)
	assert.Equal(t, 0.7, idx.gotThr)
	require.Len(t, candidates, 3)

	// s1: 0.7*0.8 + 0.3*1.0 = 0.86, s2: 0.63, s3: 0.3*0.5 = 0.15
	assert.Equal(t, "s1", candidates[0].SourceID)
	assert.Equal(t, model.MatchHybrid, candidates[0].MatchType)
	assert.InDelta(t, 0.86, candidates[0].HybridScore, 1e-9)
	assert.Equal(t, "Vaccines and autism", candidates[0].Title, "hit without payload content is hydrated")
	assert.Equal(t, "s2", candidates[1].SourceID)
	assert.Equal(t, "s3", candidates[2].SourceID)
}

func TestRetrieve_EmbeddingDownFallsBackToKeywords(t *testing.T) {
	idx := &fakeIndex{}
	r := NewRetriever(&fakeEmbedder{err: llm.ErrEmbeddingUnavailable}, idx, &fakeCorpus{sources: testCorpus}, DefaultOptions(), nil)

	candidates, deg := r.Retrieve(context.Background(), "vaccines cause autism", 5)

	assert.True(t, deg.EmbeddingUnavailable)
	assert.True(t, deg.Degraded())
	assert.Equal(t, 0, idx.queries)
	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		assert.Equal(t, model.MatchKeyword, c.MatchType)
	}
}

func TestRetrieve_EmbeddingTimeoutDegrades(t *testing.T) {
	opts := DefaultOptions()
	opts.Timeout = 20 * time.Millisecond
	r := NewRetriever(&fakeEmbedder{block: true}, &fakeIndex{}, &fakeCorpus{sources: testCorpus}, opts, nil)

	start := time.Now()
	_, deg := r.Retrieve(context.Background(), "vaccines cause autism", 5)

	assert.True(t, deg.EmbeddingUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NotEmpty(t, deg.Reasons)
	assert.True(t, strings.Contains(deg.Reasons[0], "embedding unavailable"))
}

func TestRetrieve_IndexDown(t *testing.T) {
	idx := &fakeIndex{err: index.ErrUnavailable}
	r := NewRetriever(&fakeEmbedder{vector: []float32{1}}, idx, &fakeCorpus{sources: testCorpus}, DefaultOptions(), nil)

	candidates, deg := r.Retrieve(context.Background(), "flat earth satellite", 5)

	assert.True(t, deg.IndexUnavailable)
	require.Len(t, candidates, 1)
	assert.Equal(t, "s2", candidates[0].SourceID)
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{}, &fakeCorpus{}, DefaultOptions(), nil)

	candidates, deg := r.Retrieve(context.Background(), "anything at all here", 5)

	assert.Empty(t, candidates)
	assert.True(t, deg.NoEvidence)
	assert.False(t, deg.Degraded())
}

func TestRetrieve_ZeroKeywordsUsesVectorOnly(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{{ID: "s1", Score: 0.75}}}
	r := NewRetriever(&fakeEmbedder{vector: []float32{1}}, idx, &fakeCorpus{sources: testCorpus}, DefaultOptions(), nil)

	// Only stopwords and short tokens
	candidates, deg := r.Retrieve(context.Background(), "it is what it is", 5)

	assert.False(t, deg.Degraded())
	require.Len(t, candidates, 1)
	assert.Equal(t, model.MatchVector, candidates[0].MatchType)
	assert.Nil(t, candidates[0].KeywordScore)
}

func TestRetrieve_CorpusDown(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{}, &fakeCorpus{err: errors.New("db locked")}, DefaultOptions(), nil)

	candidates, deg := r.Retrieve(context.Background(), "vaccines cause autism", 5)

	assert.Empty(t, candidates)
	assert.True(t, deg.CorpusUnavailable)
	assert.True(t, deg.NoEvidence)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(model.RetrievalConfig{SimilarityThreshold: -1, VectorWeight: -1, KeywordWeight: 0.3, MaxKeywords: 7}, 0)
	assert.Equal(t, DefaultWeights, opts.Weights)
	assert.Equal(t, 7, opts.MaxKeywords)
	assert.Equal(t, 0.7, opts.SimilarityThreshold)
	assert.Equal(t, 0, opts.CorpusLimit)

	opts = OptionsFromConfig(model.RetrievalConfig{VectorWeight: 0.5, KeywordWeight: 0.5, CorpusLimit: 50}, time.Second)
	assert.Equal(t, Weights{Vector: 0.5, Keyword: 0.5}, opts.Weights)
	assert.Equal(t, time.Second, opts.Timeout)
	assert.Equal(t, 0.0, opts.SimilarityThreshold)
	assert.Equal(t, 50, opts.CorpusLimit)
}

func TestRetrieve_ZeroThresholdReachesIndex(t *testing.T) {
	idx := &fakeIndex{}
	opts := OptionsFromConfig(model.RetrievalConfig{SimilarityThreshold: 0}, 0)
	r := NewRetriever(&fakeEmbedder{vector: []float32{1}}, idx, &fakeCorpus{}, opts, nil)

	r.Retrieve(context.Background(), "vaccines cause autism", 5)

	assert.Equal(t, 1, idx.queries)
	assert.Equal(t, 0.0, idx.gotThr)
}

func TestRetrieve_KeywordChannelScansWholeCorpus(t *testing.T) {
	corpus := &fakeCorpus{sources: testCorpus}
	r := NewRetriever(&fakeEmbedder{err: llm.ErrEmbeddingUnavailable}, &fakeIndex{}, corpus, DefaultOptions(), nil)

	r.Retrieve(context.Background(), "vaccines cause autism", 5)

	assert.Equal(t, 0, corpus.gotLimit)
}

func TestRetrieve_KeywordMatchBeyondFirstThousandSources(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, db.AddSource(ctx, &model.EvidenceSource{
			Title:      fmt.Sprintf("Gardening tip %d", i),
			Content:    "Water tomato plants early in the morning.",
			SourceName: "BBC",
		}))
	}
	require.NoError(t, db.AddSource(ctx, &model.EvidenceSource{
		ID:         "target",
		Title:      "Vaccines and autism",
		Content:    "Large studies found vaccines do not cause autism.",
		SourceName: "Snopes",
	}))

	r := NewRetriever(&fakeEmbedder{err: llm.ErrEmbeddingUnavailable}, &fakeIndex{}, db, DefaultOptions(), nil)
	candidates, deg := r.Retrieve(ctx, "vaccines cause autism", 5)

	assert.True(t, deg.EmbeddingUnavailable)
	require.Len(t, candidates, 1)
	assert.Equal(t, "target", candidates[0].SourceID)
	assert.Equal(t, model.MatchKeyword, candidates[0].MatchType)
}
