package worker

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrTooManyClaims is returned when a claims file exceeds model.MaxBatchSize
var ErrTooManyClaims = fmt.Errorf("claims file exceeds %d claims", model.MaxBatchSize)

// ReadClaimsFromFile reads claims from a CSV file with a "text" column
// (and an optional "source_url" column) or from a plain text file with
// one claim per line.
func ReadClaimsFromFile(filePath string) ([]model.ClaimInput, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []model.ClaimInput
	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		claims, err = ReadClaimsCSV(file)
	} else {
		claims, err = readClaimLines(file)
	}
	if err != nil {
		return nil, err
	}

	if len(claims) > model.MaxBatchSize {
		return nil, ErrTooManyClaims
	}

	return claims, nil
}

// ReadClaimsCSV parses claims from CSV. Rows with empty text are skipped.
func ReadClaimsCSV(r io.Reader) ([]model.ClaimInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv file is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	textCol, urlCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "text":
			textCol = i
		case "source_url":
			urlCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("csv must contain a 'text' column")
	}

	var claims []model.ClaimInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		if textCol >= len(record) {
			continue
		}
		text := strings.TrimSpace(record[textCol])
		if text == "" {
			continue
		}

		claim := model.ClaimInput{Text: text}
		if urlCol >= 0 && urlCol < len(record) {
			claim.SourceURL = strings.TrimSpace(record[urlCol])
		}
		claims = append(claims, claim)
	}

	return claims, nil
}

// readClaimLines reads one claim per line, skipping blanks, comments and duplicates
func readClaimLines(r io.Reader) ([]model.ClaimInput, error) {
	var claims []model.ClaimInput
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claims = append(claims, model.ClaimInput{Text: line})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
