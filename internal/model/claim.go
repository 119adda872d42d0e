package model

import (
	"errors"
	"math"
	"strings"
	"time"
)

// MaxClaimLength is the longest claim text accepted for analysis
const MaxClaimLength = 5000

// MaxBatchSize is the largest number of claims accepted in one batch
const MaxBatchSize = 100

// ErrInvalidInput is returned when claim text is empty or oversized
var ErrInvalidInput = errors.New("invalid claim input")

// Label is the reliability classification assigned to a claim
type Label string

const (
	LabelTrue       Label = "True"
	LabelFalse      Label = "False"
	LabelMisleading Label = "Misleading"
	LabelUnverified Label = "Unverified"
)

// Labels lists every classification label in display order
var Labels = []Label{LabelTrue, LabelUnverified, LabelMisleading, LabelFalse}

// Band boundaries. These are policy constants, not learned values.
const (
	TrueThreshold       = 70.0
	UnverifiedThreshold = 40.0
	MisleadingThreshold = 20.0
)

// LabelForScore maps a reliability score onto its band
func LabelForScore(score float64) Label {
	switch {
	case score >= TrueThreshold:
		return LabelTrue
	case score >= UnverifiedThreshold:
		return LabelUnverified
	case score >= MisleadingThreshold:
		return LabelMisleading
	default:
		return LabelFalse
	}
}

// Clamp bounds v to [0,100]. NaN maps to 0.
func Clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Claim is a natural-language assertion submitted for analysis
type Claim struct {
	ID               int64      `json:"id"`
	Text             string     `json:"text"`
	SourceURL        string     `json:"source_url,omitempty"`
	Classification   Label      `json:"classification"`
	ReliabilityScore float64    `json:"reliability_score"`
	Evidence         []string   `json:"evidence,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// ClaimInput is one item of a batch request
type ClaimInput struct {
	Text      string `json:"text" yaml:"text"`
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}

// ClassificationResult is the classifier output for one claim
type ClassificationResult struct {
	Label      Label    `json:"classification"`
	Score      float64  `json:"reliability"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
}

// ReasoningText joins the reasoning fragments for display
func (r ClassificationResult) ReasoningText() string {
	return strings.Join(r.Reasoning, "; ")
}

// UnverifiedResult is the degraded classification used when scoring cannot run
func UnverifiedResult(reason string) ClassificationResult {
	return ClassificationResult{
		Label:      LabelUnverified,
		Score:      0,
		Confidence: 0,
		Reasoning:  []string{reason},
	}
}
