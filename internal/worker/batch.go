package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

// ClaimAnalyzer analyzes a single claim and always returns a result
type ClaimAnalyzer interface {
	Analyze(ctx context.Context, input model.ClaimInput) model.AnalysisResult
}

// AnalyzeJob represents one claim analysis
type AnalyzeJob struct {
	Input    model.ClaimInput
	Analyzer ClaimAnalyzer
}

// Execute executes the analysis job
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	return &AnalyzeResult{
		Result: j.Analyzer.Analyze(ctx, j.Input),
	}
}

// AnalyzeResult wraps the analysis of one claim
type AnalyzeResult struct {
	Result model.AnalysisResult
}

// GetError returns an error when the claim could not be analyzed normally
func (r *AnalyzeResult) GetError() error {
	if r.Result.Outcome == model.OutcomeSuccess {
		return nil
	}
	return fmt.Errorf("claim %s: %v", r.Result.Outcome, r.Result.Degradations)
}

// BatchProcessor analyzes many claims concurrently
type BatchProcessor struct {
	analyzer    ClaimAnalyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer ClaimAnalyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// Process analyzes inputs and returns exactly one result per input, in
// input order. Once ctx is cancelled no further claims are started and
// the remaining slots hold a degraded "cancelled" result.
func (b *BatchProcessor) Process(ctx context.Context, inputs []model.ClaimInput) []model.AnalysisResult {
	if len(inputs) == 0 {
		return []model.AnalysisResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, input := range inputs {
		pool.Submit(&AnalyzeJob{
			Input:    input,
			Analyzer: b.analyzer,
		})
	}

	results := pool.Wait()

	out := make([]model.AnalysisResult, len(inputs))
	for i, r := range results {
		ar, ok := r.(*AnalyzeResult)
		if !ok || ar == nil {
			out[i] = model.DegradedResult(inputs[i].Text, inputs[i].SourceURL, "cancelled before analysis started")
			continue
		}
		out[i] = ar.Result
	}

	return out
}
