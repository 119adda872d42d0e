package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/index"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/retrieve"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/worker"
	"go.uber.org/zap"
)

// ClaimRecorder persists claims and their processing logs
type ClaimRecorder interface {
	CreateClaim(ctx context.Context, text, sourceURL string) (*model.Claim, error)
	UpdateClaimResult(ctx context.Context, id int64, label model.Label, score float64, evidence []string) error
	AddLog(ctx context.Context, entry *model.ProcessingLog) error
}

// Options tune the analyzer
type Options struct {
	MaxResults    int
	SnippetLength int
	Workers       int
	Timeout       time.Duration // claim index writes
}

// Analyzer runs the per-claim analysis pipeline
type Analyzer struct {
	recorder   ClaimRecorder
	retriever  *retrieve.Retriever
	claimIndex index.VectorIndex // nil skips storing claim embeddings
	classifier *score.Classifier
	opts       Options
	logger     *zap.Logger
}

// NewAnalyzer creates an analyzer from its collaborators
func NewAnalyzer(recorder ClaimRecorder, retriever *retrieve.Retriever, claimIndex index.VectorIndex, classifier *score.Classifier, opts Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = retrieve.DefaultSnippetLength
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Analyzer{
		recorder:   recorder,
		retriever:  retriever,
		claimIndex: claimIndex,
		classifier: classifier,
		opts:       opts,
		logger:     logger,
	}
}

// Validate rejects empty and oversized claim text
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: claim text is empty", model.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(text); n > model.MaxClaimLength {
		return fmt.Errorf("%w: claim text has %d characters, limit is %d", model.ErrInvalidInput, n, model.MaxClaimLength)
	}
	return nil
}

// Analyze implements worker.ClaimAnalyzer. Errors are folded into the
// returned result.
func (a *Analyzer) Analyze(ctx context.Context, input model.ClaimInput) model.AnalysisResult {
	result, _ := a.AnalyzeClaim(ctx, input.Text, input.SourceURL)
	return result
}

// AnalyzeClaim analyzes one claim. It returns an error only for invalid
// input (model.ErrInvalidInput) or when the claim cannot be recorded; every
// later stage degrades instead of failing. The result is always usable.
func (a *Analyzer) AnalyzeClaim(ctx context.Context, text, sourceURL string) (result model.AnalysisResult, err error) {
	start := time.Now()
	var claimID int64

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("analysis panicked", zap.Any("panic", r), zap.Int64("claim_id", claimID))
			result = model.DegradedResult(text, sourceURL, fmt.Sprintf("internal error: %v", r))
			result.ClaimID = claimID
			err = nil
			a.log(ctx, claimID, store.OpAnalysisFailed, store.StatusError, map[string]any{"error": fmt.Sprint(r)}, time.Since(start))
		}
		result.ProcessingTimeMS = time.Since(start).Milliseconds()
	}()

	// 1. Validate
	if err := Validate(text); err != nil {
		result = model.DegradedResult(text, sourceURL, err.Error())
		result.Outcome = model.OutcomeRejected
		return result, err
	}

	// 2. Record the claim
	claim, err := a.recorder.CreateClaim(ctx, text, sourceURL)
	if err != nil {
		a.logger.Error("failed to record claim", zap.Error(err))
		return model.DegradedResult(text, sourceURL, "could not record claim: "+err.Error()), fmt.Errorf("record claim: %w", err)
	}
	claimID = claim.ID

	result = model.AnalysisResult{
		ClaimID:   claim.ID,
		Claim:     text,
		SourceURL: sourceURL,
		Stage:     model.StageCreated,
	}
	var degradations []string

	// 3. Features
	features := extract.ExtractFeatures(text)
	result.Stage = model.StageFeaturesExtracted

	// 4. Embed and keep the claim vector
	vector, err := a.retriever.Embed(ctx, features.Preprocessed)
	if err != nil {
		degradations = append(degradations, "embedding unavailable: "+err.Error())
		a.logger.Warn("claim embedding failed", zap.Int64("claim_id", claim.ID), zap.Error(err))
	} else {
		result.Stage = model.StageEmbedded
		a.storeClaimVector(ctx, claim, vector)
	}

	// 5. Retrieve
	candidates, deg := a.retriever.RetrieveWithVector(ctx, text, vector, a.opts.MaxResults)
	degradations = append(degradations, deg.Reasons...)
	result.Stage = model.StageEvidenceRetrieved

	// 6. Snippets
	snippets := retrieve.ExtractSnippets(text, candidates, a.opts.SnippetLength)

	// 7. Classify
	classification := a.classifier.Classify(ctx, text, snippets)
	result.Stage = model.StageClassified
	result.Classification = classification.Label
	result.Reliability = classification.Score
	result.Confidence = classification.Confidence
	result.Reasoning = classification.ReasoningText()
	result.Evidence = snippets
	result.EvidenceSources = make([]model.EvidenceRef, 0, len(candidates))
	for _, c := range candidates {
		result.EvidenceSources = append(result.EvidenceSources, model.RefFromCandidate(c))
	}

	// 8. Persist
	op, status := store.OpAnalysisComplete, store.StatusSuccess
	if err := a.recorder.UpdateClaimResult(ctx, claim.ID, classification.Label, classification.Score, snippets); err != nil {
		degradations = append(degradations, "could not store result: "+err.Error())
		a.logger.Warn("failed to update claim", zap.Int64("claim_id", claim.ID), zap.Error(err))
		op, status = store.OpAnalysisFailed, store.StatusError
	} else {
		result.Stage = model.StagePersisted
	}

	result.Outcome = model.OutcomeSuccess
	if len(degradations) > 0 {
		result.Outcome = model.OutcomeDegraded
		result.Degradations = degradations
	}

	a.log(ctx, claim.ID, op, status, map[string]any{
		"classification":    string(result.Classification),
		"reliability_score": result.Reliability,
		"evidence_count":    len(snippets),
		"outcome":           string(result.Outcome),
		"degradations":      degradations,
	}, time.Since(start))

	a.logger.Info("analyzed claim",
		zap.Int64("claim_id", claim.ID),
		zap.String("classification", string(result.Classification)),
		zap.Float64("reliability", result.Reliability),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("evidence", len(snippets)))

	return result, nil
}

func (a *Analyzer) storeClaimVector(ctx context.Context, claim *model.Claim, vector []float32) {
	if a.claimIndex == nil {
		return
	}
	ictx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	id := strconv.FormatInt(claim.ID, 10)
	payload := map[string]string{
		"claim_id":   id,
		"text":       claim.Text,
		"source_url": claim.SourceURL,
		"created_at": claim.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := a.claimIndex.Upsert(ictx, id, vector, payload); err != nil {
		a.logger.Warn("failed to store claim embedding", zap.Int64("claim_id", claim.ID), zap.Error(err))
	}
}

func (a *Analyzer) log(ctx context.Context, claimID int64, op, status string, details map[string]any, elapsed time.Duration) {
	entry := &model.ProcessingLog{
		ClaimID:          claimID,
		Operation:        op,
		Status:           status,
		Details:          details,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}
	if err := a.recorder.AddLog(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Warn("failed to write processing log", zap.Int64("claim_id", claimID), zap.Error(err))
	}
}

// BatchResult is the outcome of a batch analysis
type BatchResult struct {
	Results []model.AnalysisResult `json:"results"`
	Summary model.BatchSummary     `json:"summary"`
}

// AnalyzeBatch analyzes claims concurrently and returns exactly one result
// per input, in input order. Cancelling ctx stops new analyses from
// starting; their slots hold degraded results. More than
// model.MaxBatchSize inputs returns worker.ErrTooManyClaims and no results.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, inputs []model.ClaimInput) (*BatchResult, error) {
	if len(inputs) > model.MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", worker.ErrTooManyClaims, len(inputs))
	}

	processor := worker.NewBatchProcessor(a, a.opts.Workers)
	results := processor.Process(ctx, inputs)

	summary := model.Summarize(results)
	a.logger.Info("batch complete",
		zap.Int("claims", summary.TotalAnalyzed),
		zap.Int("degraded", summary.Degraded),
		zap.Float64("average_reliability", summary.AverageReliability))

	return &BatchResult{Results: results, Summary: summary}, nil
}

// IsInputError reports whether err is a claim validation failure
func IsInputError(err error) bool {
	return errors.Is(err, model.ErrInvalidInput)
}
