package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

const claimColumns = `id, text, source_url, classification, reliability_score, evidence, created_at, processed_at`

// CreateClaim records a new claim as Unverified with score 0
func (db *DB) CreateClaim(ctx context.Context, text, sourceURL string) (*model.Claim, error) {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO claims (text, source_url, classification, reliability_score, evidence, created_at)
		 VALUES (?, ?, ?, 0, '[]', ?)`,
		text, sourceURL, string(model.LabelUnverified), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}

	return &model.Claim{
		ID:             id,
		Text:           text,
		SourceURL:      sourceURL,
		Classification: model.LabelUnverified,
		Evidence:       []string{},
		CreatedAt:      now,
	}, nil
}

// UpdateClaimResult stores the final classification of a claim
func (db *DB) UpdateClaimResult(ctx context.Context, id int64, label model.Label, score float64, evidence []string) error {
	if evidence == nil {
		evidence = []string{}
	}
	data, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE claims SET classification = ?, reliability_score = ?, evidence = ?, processed_at = ? WHERE id = ?`,
		string(label), model.Clamp(score), string(data), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("claim %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetClaim returns the claim with id or ErrNotFound
func (db *DB) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return claim, nil
}

// ListClaims returns the most recent claims first
func (db *DB) ListClaims(ctx context.Context, limit int) ([]model.Claim, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := []model.Claim{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *claim)
	}
	return claims, rows.Err()
}

// Stats aggregates processed claims and counts the corpus
func (db *DB) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{ClassificationBreakdown: make(map[model.Label]int)}

	n, err := db.CountSources(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalSources = n

	var avg sql.NullFloat64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(reliability_score) FROM claims`).Scan(&stats.TotalClaims, &avg); err != nil {
		return nil, fmt.Errorf("claim stats: %w", err)
	}
	if avg.Valid {
		stats.AverageReliability = avg.Float64
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT classification, COUNT(*) FROM claims GROUP BY classification`)
	if err != nil {
		return nil, fmt.Errorf("classification stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.ClassificationBreakdown[model.Label(label)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func scanClaim(s scanner) (*model.Claim, error) {
	var claim model.Claim
	var label, evidence, createdAt string
	var processedAt sql.NullString
	if err := s.Scan(&claim.ID, &claim.Text, &claim.SourceURL, &label, &claim.ReliabilityScore,
		&evidence, &createdAt, &processedAt); err != nil {
		return nil, err
	}

	claim.Classification = model.Label(label)
	claim.CreatedAt = parseTime(createdAt)
	if processedAt.Valid && processedAt.String != "" {
		t := parseTime(processedAt.String)
		claim.ProcessedAt = &t
	}
	if err := json.Unmarshal([]byte(evidence), &claim.Evidence); err != nil {
		claim.Evidence = []string{}
	}

	return &claim, nil
}
