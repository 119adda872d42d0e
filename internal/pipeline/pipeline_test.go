package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/retrieve"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handwashingClaim = "According to the CDC, handwashing reduces infection risk"

type downEmbedder struct{}

func (downEmbedder) Name() string { return "down" }

func (downEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, llm.ErrEmbeddingUnavailable
}

type fixture struct {
	db       *store.DB
	idx      *index.Store
	analyzer *Analyzer
}

func newFixture(t *testing.T, embedder llm.Embedder, recorder ClaimRecorder) *fixture {
	t.Helper()

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx, err := index.Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	if recorder == nil {
		recorder = db
	}

	retriever := retrieve.NewRetriever(embedder, idx.Collection(index.Sources), db, retrieve.DefaultOptions(), nil)
	analyzer := NewAnalyzer(recorder, retriever, idx.Collection(index.Claims), score.NewClassifier(nil, 0, nil), Options{Workers: 2}, nil)

	return &fixture{db: db, idx: idx, analyzer: analyzer}
}

func (f *fixture) seed(t *testing.T, embedder llm.Embedder) {
	t.Helper()
	ctx := context.Background()

	sources := []model.EvidenceSource{
		{
			ID:                "cdc-handwashing",
			Title:             "Handwashing reduces infection risk",
			Content:           "A 2024 study found that handwashing reduces infection risk by 16%. Health officials recommend soap and water.",
			SourceName:        "Reuters",
			ReliabilityRating: 0.85,
		},
		{
			ID:                "moon",
			Title:             "Moon landing",
			Content:           "The Apollo missions landed astronauts on the moon between 1969 and 1972.",
			SourceName:        "BBC",
			ReliabilityRating: 0.82,
		},
	}
	for i := range sources {
		require.NoError(t, f.db.AddSource(ctx, &sources[i]))
	}

	// Index the handwashing source under the claim's own vector so the
	// vector channel is guaranteed to find it
	vector, err := embedder.Embed(ctx, extract.PreprocessForEmbedding(handwashingClaim))
	require.NoError(t, err)
	require.NoError(t, f.idx.Collection(index.Sources).Upsert(ctx, "cdc-handwashing", vector, nil))
}

func TestAnalyzeClaim_EndToEnd(t *testing.T) {
	embedder := llm.NewHashingEmbedder(128)
	f := newFixture(t, embedder, nil)
	f.seed(t, embedder)
	ctx := context.Background()

	result, err := f.analyzer.AnalyzeClaim(ctx, handwashingClaim, "https://example.com/post")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.Equal(t, model.StagePersisted, result.Stage)
	assert.Empty(t, result.Degradations)
	assert.NotEqual(t, model.LabelFalse, result.Classification)
	require.NotEmpty(t, result.EvidenceSources)
	assert.Equal(t, "cdc-handwashing", result.EvidenceSources[0].SourceID)
	assert.Equal(t, model.MatchHybrid, result.EvidenceSources[0].MatchType)
	require.NotEmpty(t, result.Evidence)
	assert.Contains(t, result.Evidence[0], "handwashing reduces infection risk")

	claim, err := f.db.GetClaim(ctx, result.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, result.Classification, claim.Classification)
	assert.InDelta(t, result.Reliability, claim.ReliabilityScore, 1e-9)
	assert.NotNil(t, claim.ProcessedAt)

	logs, err := f.db.ListLogs(ctx, result.ClaimID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.OpAnalysisComplete, logs[0].Operation)
	assert.Equal(t, store.StatusSuccess, logs[0].Status)

	n, err := f.idx.Collection(index.Claims).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAnalyzeClaim_InvalidInput(t *testing.T) {
	f := newFixture(t, llm.NewHashingEmbedder(64), nil)
	ctx := context.Background()

	for _, text := range []string{"", "   ", strings.Repeat("a", model.MaxClaimLength+1)} {
		result, err := f.analyzer.AnalyzeClaim(ctx, text, "")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		assert.True(t, IsInputError(err))
		assert.Equal(t, model.OutcomeRejected, result.Outcome)
		assert.Equal(t, model.LabelUnverified, result.Classification)
	}

	claims, err := f.db.ListClaims(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestAnalyzeClaim_MaxLengthAccepted(t *testing.T) {
	f := newFixture(t, llm.NewHashingEmbedder(64), nil)

	_, err := f.analyzer.AnalyzeClaim(context.Background(), strings.Repeat("é", model.MaxClaimLength), "")
	assert.NoError(t, err)
}

func TestAnalyzeClaim_EmbeddingDown(t *testing.T) {
	f := newFixture(t, downEmbedder{}, nil)
	f.seed(t, llm.NewHashingEmbedder(128))

	result, err := f.analyzer.AnalyzeClaim(context.Background(), handwashingClaim, "")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	assert.Equal(t, model.StagePersisted, result.Stage)
	require.NotEmpty(t, result.Degradations)
	assert.Contains(t, result.Degradations[0], "embedding unavailable")
	require.NotEmpty(t, result.EvidenceSources)
	for _, ref := range result.EvidenceSources {
		assert.Equal(t, model.MatchKeyword, ref.MatchType)
	}

	n, err := f.idx.Collection(index.Claims).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAnalyzeClaim_EmptyCorpus(t *testing.T) {
	f := newFixture(t, llm.NewHashingEmbedder(64), nil)

	result, err := f.analyzer.AnalyzeClaim(context.Background(), "BREAKING: SHOCKING SECRET EXPOSED! Aliens are real!", "")
	require.NoError(t, err)

	assert.Equal(t, model.LabelFalse, result.Classification)
	assert.LessOrEqual(t, result.Reliability, 15.0)
	assert.Empty(t, result.Evidence)
	assert.NotNil(t, result.Evidence)
	assert.Contains(t, result.Reasoning, score.ReasonNoEvidence)
}

type failingRecorder struct {
	*store.DB
	createErr error
	panicOn   bool
}

func (r *failingRecorder) CreateClaim(ctx context.Context, text, sourceURL string) (*model.Claim, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.DB.CreateClaim(ctx, text, sourceURL)
}

func (r *failingRecorder) UpdateClaimResult(ctx context.Context, id int64, label model.Label, score float64, evidence []string) error {
	if r.panicOn {
		panic("disk on fire")
	}
	return r.DB.UpdateClaimResult(ctx, id, label, score, evidence)
}

func TestAnalyzeClaim_RecordFailureIsFatal(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	f := newFixture(t, llm.NewHashingEmbedder(64), &failingRecorder{DB: db, createErr: errors.New("database is locked")})

	result, err := f.analyzer.AnalyzeClaim(context.Background(), handwashingClaim, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record claim")
	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	assert.Equal(t, model.LabelUnverified, result.Classification)
}

func TestAnalyzeClaim_RecoversFromPanic(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	f := newFixture(t, llm.NewHashingEmbedder(64), &failingRecorder{DB: db, panicOn: true})

	var result model.AnalysisResult
	require.NotPanics(t, func() {
		result, err = f.analyzer.AnalyzeClaim(context.Background(), handwashingClaim, "")
	})
	assert.NoError(t, err)
	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	assert.Contains(t, result.Reasoning, "internal error: disk on fire")
	assert.NotZero(t, result.ClaimID)

	logs, err := db.ListLogs(context.Background(), result.ClaimID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.OpAnalysisFailed, logs[0].Operation)
}

func TestAnalyzeBatch_OrderAndSummary(t *testing.T) {
	embedder := llm.NewHashingEmbedder(128)
	f := newFixture(t, embedder, nil)
	f.seed(t, embedder)

	inputs := []model.ClaimInput{
		{Text: handwashingClaim},
		{Text: ""},
		{Text: "The Apollo missions landed on the moon", SourceURL: "https://example.com/apollo"},
		{Text: "BREAKING: SHOCKING SECRET EXPOSED! Aliens are real!"},
	}

	batch, err := f.analyzer.AnalyzeBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, batch.Results, len(inputs))

	for i, r := range batch.Results {
		assert.Equal(t, inputs[i].Text, r.Claim)
		assert.Equal(t, inputs[i].SourceURL, r.SourceURL)
	}
	assert.Equal(t, model.OutcomeRejected, batch.Results[1].Outcome)
	assert.Equal(t, model.LabelFalse, batch.Results[3].Classification)

	assert.Equal(t, len(inputs), batch.Summary.TotalAnalyzed)
	assert.GreaterOrEqual(t, batch.Summary.Degraded, 1)
	total := 0
	for _, n := range batch.Summary.ClassificationBreakdown {
		total += n
	}
	assert.Equal(t, len(inputs), total)
}

func TestAnalyzeBatch_TooMany(t *testing.T) {
	f := newFixture(t, llm.NewHashingEmbedder(64), nil)

	inputs := make([]model.ClaimInput, model.MaxBatchSize+1)
	batch, err := f.analyzer.AnalyzeBatch(context.Background(), inputs)
	assert.ErrorIs(t, err, worker.ErrTooManyClaims)
	assert.Nil(t, batch)
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	f := newFixture(t, llm.NewHashingEmbedder(64), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []model.ClaimInput{{Text: "first claim text"}, {Text: "second claim text"}, {Text: "third claim text"}}
	batch, err := f.analyzer.AnalyzeBatch(ctx, inputs)
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	for i, r := range batch.Results {
		assert.Equal(t, inputs[i].Text, r.Claim)
		assert.Equal(t, model.OutcomeDegraded, r.Outcome)
	}
}
