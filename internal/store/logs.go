package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Processing log operations and statuses
const (
	OpAnalysisComplete = "analysis_complete"
	OpAnalysisFailed   = "analysis_failed"

	StatusSuccess = "success"
	StatusError   = "error"
)

// AddLog appends a processing log entry
func (db *DB) AddLog(ctx context.Context, entry *model.ProcessingLog) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal log details: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var claimID any
	if entry.ClaimID > 0 {
		claimID = entry.ClaimID
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO processing_logs (claim_id, operation, status, details, processing_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		claimID, entry.Operation, entry.Status, string(data), entry.ProcessingTimeMS, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("add log: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// ListLogs returns the log entries of a claim, oldest first
func (db *DB) ListLogs(ctx context.Context, claimID int64) ([]model.ProcessingLog, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, operation, status, details, processing_time_ms, created_at
		 FROM processing_logs WHERE claim_id = ? ORDER BY id`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	logs := []model.ProcessingLog{}
	for rows.Next() {
		entry := model.ProcessingLog{ClaimID: claimID}
		var details, createdAt string
		if err := rows.Scan(&entry.ID, &entry.Operation, &entry.Status, &details,
			&entry.ProcessingTimeMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		_ = json.Unmarshal([]byte(details), &entry.Details)
		entry.CreatedAt = parseTime(createdAt)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
