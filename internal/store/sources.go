package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/veracity/internal/model"
)

const sourceColumns = `id, title, content, source_name, source_url, topic, is_verified, reliability_rating, created_at, updated_at`

// AddSource inserts a source, or replaces the source with the same id.
// An empty id is assigned a new UUID.
func (db *DB) AddSource(ctx context.Context, src *model.EvidenceSource) error {
	if strings.TrimSpace(src.Title) == "" || strings.TrimSpace(src.Content) == "" {
		return fmt.Errorf("add source: title and content are required")
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO fact_sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			source_name = excluded.source_name,
			source_url = excluded.source_url,
			topic = excluded.topic,
			is_verified = excluded.is_verified,
			reliability_rating = excluded.reliability_rating,
			updated_at = excluded.updated_at
	`, src.ID, src.Title, src.Content, src.SourceName, src.SourceURL, src.Topic,
		src.IsVerified, src.ReliabilityRating, formatTime(src.CreatedAt), formatTime(src.UpdatedAt))
	if err != nil {
		return fmt.Errorf("add source: %w", err)
	}
	return nil
}

// ListSources returns up to limit sources in insertion order, optionally
// filtered by topic. A limit <= 0 returns every source.
func (db *DB) ListSources(ctx context.Context, topic string, limit int) ([]model.EvidenceSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM fact_sources`
	var args []any
	if topic != "" {
		query += ` WHERE topic = ? COLLATE NOCASE`
		args = append(args, topic)
	}
	query += ` ORDER BY created_at, rowid`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []model.EvidenceSource{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// GetSource returns the source with id or ErrNotFound
func (db *DB) GetSource(ctx context.Context, id string) (*model.EvidenceSource, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM fact_sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

// SetVerified records the outcome of a URL verification
func (db *DB) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE fact_sources SET is_verified = ?, updated_at = ? WHERE id = ?`,
		verified, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountSources returns the number of sources in the corpus
func (db *DB) CountSources(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM fact_sources`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(s scanner) (*model.EvidenceSource, error) {
	var src model.EvidenceSource
	var createdAt, updatedAt string
	if err := s.Scan(&src.ID, &src.Title, &src.Content, &src.SourceName, &src.SourceURL,
		&src.Topic, &src.IsVerified, &src.ReliabilityRating, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	src.CreatedAt = parseTime(createdAt)
	src.UpdatedAt = parseTime(updatedAt)
	return &src, nil
}
