package retrieve

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSnippets_BestSentence(t *testing.T) {
	candidates := []model.RetrievalCandidate{
		{SourceID: "a", Content: "Handwashing is a simple habit. A 2024 study found handwashing reduces infection risk. Soap matters too."},
		{SourceID: "b", Content: ""},
		{SourceID: "c", Content: "Nothing relevant appears in this article at all."},
	}

	snippets := ExtractSnippets("Handwashing reduces infection risk", candidates, 200)

	require.Len(t, snippets, 1)
	assert.Equal(t, "A 2024 study found handwashing reduces infection risk", snippets[0])
}

func TestExtractSnippets_TiesPickFirst(t *testing.T) {
	candidates := []model.RetrievalCandidate{
		{Content: "The first sentence mentions vaccines. The second also covers vaccines."},
	}
	snippets := ExtractSnippets("vaccines", candidates, 200)
	require.Len(t, snippets, 1)
	assert.Equal(t, "The first sentence mentions vaccines", snippets[0])
}

func TestExtractSnippets_Truncates(t *testing.T) {
	long := "Climate " + strings.Repeat("ü", 300)
	snippets := ExtractSnippets("climate change", []model.RetrievalCandidate{{Content: long}}, 50)

	require.Len(t, snippets, 1)
	assert.True(t, strings.HasSuffix(snippets[0], "..."))
	assert.Equal(t, 53, utf8.RuneCountInString(snippets[0]))
}

func TestExtractSnippets_AtMostOnePerCandidate(t *testing.T) {
	var candidates []model.RetrievalCandidate
	for i := 0; i < 4; i++ {
		candidates = append(candidates, model.RetrievalCandidate{Content: "Vaccines are tested for safety. Vaccines are monitored."})
	}
	snippets := ExtractSnippets("vaccines safety", candidates, 0)
	assert.Len(t, snippets, 4)
}

func TestExtractSnippets_NoKeywords(t *testing.T) {
	snippets := ExtractSnippets("it is", []model.RetrievalCandidate{{Content: "It is a long enough sentence."}}, 200)
	assert.Empty(t, snippets)
	assert.NotNil(t, snippets)
}
