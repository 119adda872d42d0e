// Package score classifies claims with additive lexical heuristics, an
// evidence quality bonus and an optional auxiliary sentiment signal.
package score

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/model"
	"go.uber.org/zap"
)

const (
	baseScore          = 50.0
	maxEvidenceBonus   = 25.0
	noEvidencePenalty  = 20.0
	maxSignalConfident = 95.0
	shortClaimWords    = 5
)

// Reasoning phrases that are not tied to a single rule
const (
	ReasonEmptyClaim   = "Empty or invalid claim text"
	ReasonNoFeatures   = "No distinguishing features"
	ReasonNoEvidence   = "No supporting evidence found"
	reasonEvidenceFmt  = "Evidence quality analysis: +%.1f"
	reasonSentimentFmt = "Sentiment analysis adjustment: %+.1f"
)

// SentimentMultipliers maps each auxiliary sentiment onto the score
// adjustment applied per unit of signal confidence
var SentimentMultipliers = map[llm.Sentiment]float64{
	llm.SentimentNegative: -5,
	llm.SentimentNeutral:  0,
	llm.SentimentPositive: 2,
}

type rule struct {
	reason string
	delta  float64
	match  func(text string, f extract.Features) bool
}

func lexiconRule(reason string, delta float64, l lexicon) rule {
	return rule{reason: reason, delta: delta, match: func(text string, _ extract.Features) bool {
		return l.matches(text)
	}}
}

// rules are evaluated in order; every triggered rule adds its reason
var rules = []rule{
	{reason: "Contains excessive capitalization", delta: -10, match: func(_ string, f extract.Features) bool {
		return f.HasCaps
	}},
	{reason: "Very short claim with limited context", delta: -15, match: func(_ string, f extract.Features) bool {
		return len(f.Sentences) == 1 && f.WordCount < shortClaimWords
	}},
	lexiconRule("Contains scientific language", 15, scientificTerms),
	lexiconRule("References authoritative sources", 10, authorityTerms),
	lexiconRule("Contains uncertainty language", -3, uncertaintyTerms),
	lexiconRule("Contains absolute statements", -5, absoluteTerms),
	lexiconRule("Contains sensational language", -15, sensationalTerms),
	lexiconRule("Contains emotional manipulation", -8, emotionalTerms),
	lexiconRule("Contains specific factual claims", 8, factualTerms),
}

// Assessment is the heuristic result before signal fusion
type Assessment struct {
	Score         float64 // unclamped
	EvidenceBonus float64
	Reasoning     []string
}

// Classifier scores claims
type Classifier struct {
	sentiment llm.SentimentScorer
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClassifier creates a classifier. sentiment may be nil.
func NewClassifier(sentiment llm.SentimentScorer, timeout time.Duration, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{
		sentiment: sentiment,
		timeout:   timeout,
		logger:    logger,
	}
}

// Classify scores claimText against the evidence snippets. It never
// panics: an internal failure yields Unverified/0/0 with the cause in
// the reasoning.
func (c *Classifier) Classify(ctx context.Context, claimText string, snippets []string) (result model.ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("classification panicked", zap.Any("panic", r))
			result = model.UnverifiedResult(fmt.Sprintf("Classification error: %v", r))
		}
	}()

	processed := extract.PreprocessForEmbedding(claimText)
	if processed == "" {
		return model.UnverifiedResult(ReasonEmptyClaim)
	}

	assessment := Assess(processed, snippets)
	score := model.Clamp(assessment.Score)
	result = model.ClassificationResult{
		Label:      model.LabelForScore(score),
		Score:      score,
		Confidence: evidenceConfidence(len(snippets)),
		Reasoning:  assessment.Reasoning,
	}

	if c.sentiment != nil {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		signal, err := c.sentiment.Score(sctx, processed)
		cancel()
		if err != nil {
			c.logger.Warn("sentiment signal failed, keeping heuristic result", zap.Error(err))
		} else {
			result = Fuse(result, signal)
		}
	}

	c.logger.Debug("classified claim",
		zap.String("label", string(result.Label)),
		zap.Float64("score", result.Score),
		zap.Float64("confidence", result.Confidence))

	return result
}

// Assess runs the lexical rules and the evidence analysis on an already
// preprocessed claim. The score is not clamped.
func Assess(claim string, snippets []string) Assessment {
	features := extract.ExtractFeatures(claim)
	a := Assessment{Score: baseScore}

	// 1. Lexical rules
	for _, r := range rules {
		if r.match(claim, features) {
			a.Score += r.delta
			a.Reasoning = append(a.Reasoning, r.reason)
		}
	}

	// 2. Evidence
	if len(snippets) == 0 {
		a.Score -= noEvidencePenalty
		a.Reasoning = append(a.Reasoning, ReasonNoEvidence)
	} else {
		a.EvidenceBonus = EvidenceBonus(snippets)
		a.Score += a.EvidenceBonus
		if a.EvidenceBonus > 0 {
			a.Reasoning = append(a.Reasoning, fmt.Sprintf(reasonEvidenceFmt, a.EvidenceBonus))
		}
	}

	if len(a.Reasoning) == 0 {
		a.Reasoning = []string{ReasonNoFeatures}
	}
	return a
}

// EvidenceBonus rates snippet quality, capped at 25
func EvidenceBonus(snippets []string) float64 {
	var bonus float64
	for _, s := range snippets {
		if len([]rune(s)) > 100 {
			bonus += 5
		}
		if credibilityTerms.matches(s) {
			bonus += 8
		}
		if recentYears.matches(s) {
			bonus += 3
		}
		if statisticTerms.matches(s) {
			bonus += 4
		}
	}
	return math.Min(bonus, maxEvidenceBonus)
}

// Fuse applies an auxiliary sentiment signal to a heuristic result. The
// label changes only when the adjusted score lands in a different band.
func Fuse(heuristic model.ClassificationResult, signal llm.Signal) model.ClassificationResult {
	if math.IsNaN(signal.Confidence) || math.IsInf(signal.Confidence, 0) {
		return heuristic
	}
	confidence := math.Max(0, math.Min(signal.Confidence, 1))
	adjustment := SentimentMultipliers[signal.Sentiment] * confidence

	fused := heuristic
	fused.Reasoning = append([]string(nil), heuristic.Reasoning...)
	fused.Score = model.Clamp(heuristic.Score + adjustment)
	if band := model.LabelForScore(fused.Score); band != heuristic.Label {
		fused.Label = band
	}
	if adjustment != 0 {
		fused.Reasoning = append(fused.Reasoning, fmt.Sprintf(reasonSentimentFmt, adjustment))
	}
	fused.Confidence = math.Min(confidence*100, maxSignalConfident)
	return fused
}

// evidenceConfidence is used when no auxiliary signal is available
func evidenceConfidence(snippets int) float64 {
	if snippets == 0 {
		return 20
	}
	return math.Min(40+10*float64(snippets), 80)
}
