package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

type mockAnalyzer struct {
	calls   atomic.Int32
	degrade string
	cancel  context.CancelFunc
}

func (m *mockAnalyzer) Analyze(ctx context.Context, input model.ClaimInput) model.AnalysisResult {
	n := m.calls.Add(1)
	if m.cancel != nil && n == 1 {
		m.cancel()
		time.Sleep(10 * time.Millisecond)
	}
	if input.Text == m.degrade {
		return model.DegradedResult(input.Text, input.SourceURL, "evidence retrieval failed")
	}
	return model.AnalysisResult{
		Claim:          input.Text,
		SourceURL:      input.SourceURL,
		Classification: model.LabelTrue,
		Reliability:    80,
		Outcome:        model.OutcomeSuccess,
	}
}

func TestBatchProcessor_Process(t *testing.T) {
	analyzer := &mockAnalyzer{degrade: "claim b"}
	processor := NewBatchProcessor(analyzer, 2)

	inputs := []model.ClaimInput{
		{Text: "claim a"},
		{Text: "claim b"},
		{Text: "claim c", SourceURL: "https://example.com"},
	}

	results := processor.Process(context.Background(), inputs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Claim != inputs[i].Text {
			t.Errorf("result %d is for %q, want %q", i, r.Claim, inputs[i].Text)
		}
	}
	if results[1].Outcome != model.OutcomeDegraded {
		t.Errorf("expected degraded result for claim b, got %s", results[1].Outcome)
	}
	if results[2].SourceURL != "https://example.com" {
		t.Errorf("expected source url to be carried, got %q", results[2].SourceURL)
	}
}

func TestBatchProcessor_CancelledBatchKeepsOneResultPerInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	analyzer := &mockAnalyzer{cancel: cancel}
	processor := NewBatchProcessor(analyzer, 1)

	inputs := make([]model.ClaimInput, 6)
	for i := range inputs {
		inputs[i] = model.ClaimInput{Text: strings.Repeat("x", i+1)}
	}

	results := processor.Process(ctx, inputs)

	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}
	if results[0].Outcome != model.OutcomeSuccess {
		t.Errorf("expected first claim to complete, got %s", results[0].Outcome)
	}
	cancelled := 0
	for i, r := range results {
		if r.Claim != inputs[i].Text {
			t.Errorf("result %d out of order", i)
		}
		if r.Outcome == model.OutcomeDegraded && strings.Contains(r.Reasoning, "cancelled") {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Error("expected at least one cancelled result")
	}
	if int(analyzer.calls.Load()) == len(inputs) {
		t.Error("expected cancellation to stop some analyses from starting")
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{}, 2)
	if results := processor.Process(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestReadClaimsFromFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	content := "# comment\nVaccines cause autism\n\nThe earth is flat\nVaccines cause autism\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimsFromFile failed: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
	if claims[1].Text != "The earth is flat" {
		t.Errorf("unexpected second claim: %q", claims[1].Text)
	}
}

func TestReadClaimsFromFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.csv")
	content := "source_url,text\nhttps://example.com/a,\"Handwashing reduces infection, says CDC\"\n,\n,Second claim\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimsFromFile failed: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
	if claims[0].Text != "Handwashing reduces infection, says CDC" || claims[0].SourceURL != "https://example.com/a" {
		t.Errorf("unexpected first claim: %+v", claims[0])
	}
	if claims[1].SourceURL != "" {
		t.Errorf("expected empty source url, got %q", claims[1].SourceURL)
	}
}

func TestReadClaimsCSV_MissingTextColumn(t *testing.T) {
	if _, err := ReadClaimsCSV(strings.NewReader("claim,url\na,b\n")); err == nil {
		t.Error("expected error for csv without text column")
	}
}

func TestReadClaimsFromFile_TooMany(t *testing.T) {
	var b strings.Builder
	b.WriteString("text\n")
	for i := 0; i <= model.MaxBatchSize; i++ {
		b.WriteString("claim number ")
		b.WriteString(strings.Repeat("a", i+1))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "many.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	if _, err := ReadClaimsFromFile(path); err != ErrTooManyClaims {
		t.Errorf("expected ErrTooManyClaims, got %v", err)
	}
}

func TestReadClaimsFromFile_NotFound(t *testing.T) {
	if _, err := ReadClaimsFromFile("/non/existent/file.txt"); err == nil {
		t.Error("expected error for non-existent file")
	}
}
