package retrieve

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
)

// DefaultSnippetLength is the longest snippet before truncation
const DefaultSnippetLength = 200

// snippetKeywords is how many claim keywords are matched against sentences
const snippetKeywords = 3

// ExtractSnippets picks, for each candidate, the sentence that contains the
// most of the claim's top keywords. Candidates without a matching sentence
// produce no snippet.
func ExtractSnippets(claimText string, candidates []model.RetrievalCandidate, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}

	snippets := []string{}
	keywords := extract.Keywords(claimText, snippetKeywords)
	if len(keywords) == 0 {
		return snippets
	}

	for _, c := range candidates {
		if c.Content == "" {
			continue
		}
		if best := bestSentence(c.Content, keywords); best != "" {
			snippets = append(snippets, truncate(best, maxLen))
		}
	}
	return snippets
}

func bestSentence(content string, keywords []string) string {
	best, bestCount := "", 0
	for _, sentence := range extract.Sentences(content) {
		lower := strings.ToLower(sentence)
		count := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = sentence, count
		}
	}
	return best
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
