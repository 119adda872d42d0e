package model

import "time"

// EvidenceSource is a fact-checking article in the evidence corpus
type EvidenceSource struct {
	ID                string    `json:"id" yaml:"id,omitempty"`
	Title             string    `json:"title" yaml:"title"`
	Content           string    `json:"content" yaml:"content"`
	SourceName        string    `json:"source_name" yaml:"source_name"`
	SourceURL         string    `json:"source_url" yaml:"source_url"`
	Topic             string    `json:"topic,omitempty" yaml:"topic,omitempty"`
	IsVerified        bool      `json:"is_verified" yaml:"is_verified"`
	ReliabilityRating float64   `json:"reliability_rating" yaml:"reliability_rating,omitempty"` // 0.0-1.0
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// MatchType records which retrieval channel found a candidate
type MatchType string

const (
	MatchVector  MatchType = "vector"
	MatchKeyword MatchType = "keyword"
	MatchHybrid  MatchType = "hybrid"
)

// RetrievalCandidate is a transient ranked evidence hit.
// VectorScore and KeywordScore are nil when the channel did not find the source.
type RetrievalCandidate struct {
	SourceID     string    `json:"source_id"`
	VectorScore  *float64  `json:"vector_score,omitempty"`
	KeywordScore *float64  `json:"keyword_score,omitempty"`
	HybridScore  float64   `json:"hybrid_score"`
	MatchType    MatchType `json:"match_type"`

	Title       string  `json:"title"`
	Content     string  `json:"-"`
	SourceName  string  `json:"source_name"`
	SourceURL   string  `json:"source_url"`
	Reliability float64 `json:"reliability"`
}

// Vector returns the vector score, 0 when unset
func (c RetrievalCandidate) Vector() float64 {
	if c.VectorScore == nil {
		return 0
	}
	return *c.VectorScore
}

// Keyword returns the keyword score, 0 when unset
func (c RetrievalCandidate) Keyword() float64 {
	if c.KeywordScore == nil {
		return 0
	}
	return *c.KeywordScore
}

// EvidenceRef is the evidence summary attached to an analysis result
type EvidenceRef struct {
	SourceID       string    `json:"source_id"`
	Title          string    `json:"title"`
	SourceName     string    `json:"source_name"`
	SourceURL      string    `json:"source_url"`
	RelevanceScore float64   `json:"relevance_score"`
	MatchType      MatchType `json:"match_type"`
}

// RefFromCandidate converts a retrieval candidate to its public summary
func RefFromCandidate(c RetrievalCandidate) EvidenceRef {
	return EvidenceRef{
		SourceID:       c.SourceID,
		Title:          c.Title,
		SourceName:     c.SourceName,
		SourceURL:      c.SourceURL,
		RelevanceScore: c.HybridScore,
		MatchType:      c.MatchType,
	}
}
