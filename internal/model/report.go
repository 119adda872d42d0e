package model

import "time"

// Stage is a step of the per-claim analysis state machine
type Stage string

const (
	StageCreated           Stage = "created"
	StageFeaturesExtracted Stage = "features_extracted"
	StageEmbedded          Stage = "embedded"
	StageEvidenceRetrieved Stage = "evidence_retrieved"
	StageClassified        Stage = "classified"
	StagePersisted         Stage = "persisted"
)

// Outcome tells whether every stage contributed or some degraded
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeRejected Outcome = "rejected"
)

// AnalysisResult is the complete output of analyzing one claim
type AnalysisResult struct {
	ClaimID          int64         `json:"claim_id,omitempty"`
	Claim            string        `json:"claim"`
	SourceURL        string        `json:"source_url,omitempty"`
	Classification   Label         `json:"classification"`
	Reliability      float64       `json:"reliability"`
	Confidence       float64       `json:"confidence"`
	Reasoning        string        `json:"reasoning"`
	Evidence         []string      `json:"evidence"`
	EvidenceSources  []EvidenceRef `json:"evidence_sources"`
	Stage            Stage         `json:"stage"`
	Outcome          Outcome       `json:"outcome"`
	Degradations     []string      `json:"degradations,omitempty"`
	ProcessingTimeMS int64         `json:"processing_time_ms"`
}

// DegradedResult is the default result returned when analysis cannot complete
func DegradedResult(text, sourceURL, reason string) AnalysisResult {
	return AnalysisResult{
		Claim:           text,
		SourceURL:       sourceURL,
		Classification:  LabelUnverified,
		Reasoning:       reason,
		Evidence:        []string{},
		EvidenceSources: []EvidenceRef{},
		Stage:           StageCreated,
		Outcome:         OutcomeDegraded,
		Degradations:    []string{reason},
	}
}

// BatchSummary aggregates the final results of a batch
type BatchSummary struct {
	TotalAnalyzed           int           `json:"total_analyzed"`
	AverageReliability      float64       `json:"average_reliability"`
	ClassificationBreakdown map[Label]int `json:"classification_breakdown"`
	Degraded                int           `json:"degraded"`
}

// Summarize computes batch statistics over final results. The average
// covers every slot; rejected and cancelled slots contribute 0.
func Summarize(results []AnalysisResult) BatchSummary {
	summary := BatchSummary{
		TotalAnalyzed:           len(results),
		ClassificationBreakdown: make(map[Label]int),
	}
	if len(results) == 0 {
		return summary
	}

	var total float64
	for _, r := range results {
		total += r.Reliability
		summary.ClassificationBreakdown[r.Classification]++
		if r.Outcome != OutcomeSuccess {
			summary.Degraded++
		}
	}
	summary.AverageReliability = total / float64(len(results))

	return summary
}

// ProcessingLog records one pipeline operation for a claim
type ProcessingLog struct {
	ID               int64          `json:"id"`
	ClaimID          int64          `json:"claim_id"`
	Operation        string         `json:"operation"`
	Status           string         `json:"status"`
	Details          map[string]any `json:"details,omitempty"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Stats are aggregate statistics over all stored claims
type Stats struct {
	TotalClaims             int           `json:"total_claims"`
	AverageReliability      float64       `json:"average_reliability"`
	ClassificationBreakdown map[Label]int `json:"classification_breakdown"`
	TotalSources            int           `json:"total_sources"`
}
