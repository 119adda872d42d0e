package validate

import (
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func TestReliabilityTable_Rate(t *testing.T) {
	table := NewReliabilityTable(nil)

	tests := []struct {
		name       string
		sourceName string
		sourceURL  string
		want       float64
	}{
		{"exact name", "Snopes", "", 0.95},
		{"substring match", "PolitiFact Truth-O-Meter", "", 0.90},
		{"dotted name", "FactCheck.org", "", 0.88},
		{"table order wins", "Reuters via BBC", "", 0.85},
		{"falls back to host", "", "https://www.bbc.co.uk/news/1", 0.82},
		{"host alias", "", "https://apnews.com/article/x", 0.85},
		{"unknown", "Some Blog", "https://example.com", 0.50},
		{"empty", "", "", 0.50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Rate(tt.sourceName, tt.sourceURL); got != tt.want {
				t.Errorf("Rate(%q, %q) = %v, want %v", tt.sourceName, tt.sourceURL, got, tt.want)
			}
		})
	}
}

func TestReliabilityTable_CustomConfig(t *testing.T) {
	table := NewReliabilityTable(&model.ReliabilityConfig{
		Sources: []model.SourceRating{
			{Name: "  Local Wire ", Rating: 1.7},
			{Name: "", Rating: 0.3},
		},
		Unknown: -1,
	})

	if got := table.Rate("local wire service", ""); got != 1 {
		t.Errorf("expected rating clamped to 1, got %v", got)
	}
	if got := table.Rate("anything else", ""); got != 0 {
		t.Errorf("expected unknown clamped to 0, got %v", got)
	}
}

func TestReliabilityTable_Apply(t *testing.T) {
	table := NewReliabilityTable(nil)

	src := model.EvidenceSource{SourceName: "CNN"}
	table.Apply(&src)
	if src.ReliabilityRating != 0.75 {
		t.Errorf("expected 0.75, got %v", src.ReliabilityRating)
	}

	preset := model.EvidenceSource{SourceName: "CNN", ReliabilityRating: 0.4}
	table.Apply(&preset)
	if preset.ReliabilityRating != 0.4 {
		t.Errorf("expected preset rating to be kept, got %v", preset.ReliabilityRating)
	}
}
