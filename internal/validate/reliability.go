package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// ReliabilityTable assigns static reliability ratings to evidence provenance
type ReliabilityTable struct {
	sources []model.SourceRating
	unknown float64
}

// NewReliabilityTable creates a table from configuration.
// A nil config uses the built-in defaults.
func NewReliabilityTable(config *model.ReliabilityConfig) *ReliabilityTable {
	if config == nil {
		config = &model.DefaultConfig().Reliability
	}

	table := &ReliabilityTable{
		unknown: clampUnit(config.Unknown),
	}
	for _, s := range config.Sources {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			continue
		}
		table.sources = append(table.sources, model.SourceRating{
			Name:   name,
			Rating: clampUnit(s.Rating),
		})
	}

	return table
}

// Rate returns the rating of the first table entry contained in sourceName,
// falling back to the host of sourceURL, then to the unknown rating.
func (t *ReliabilityTable) Rate(sourceName, sourceURL string) float64 {
	if rating, ok := t.lookup(sourceName); ok {
		return rating
	}
	if host := hostOf(sourceURL); host != "" {
		if rating, ok := t.lookup(host); ok {
			return rating
		}
	}
	return t.unknown
}

func (t *ReliabilityTable) lookup(name string) (float64, bool) {
	name = strings.ToLower(name)
	if name == "" {
		return 0, false
	}
	for _, s := range t.sources {
		if strings.Contains(name, s.Name) {
			return s.Rating, true
		}
	}
	return 0, false
}

// Apply sets the reliability rating of a source that does not carry one
func (t *ReliabilityTable) Apply(source *model.EvidenceSource) {
	if source.ReliabilityRating > 0 {
		return
	}
	source.ReliabilityRating = t.Rate(source.SourceName, source.SourceURL)
}

// hostAliases maps hosts whose name differs from their table entry
var hostAliases = map[string]string{
	"apnews.com":  "ap news",
	"foxnews.com": "fox news",
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if alias, ok := hostAliases[host]; ok {
		return alias
	}
	return host
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
