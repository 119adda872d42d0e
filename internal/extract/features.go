package extract

import "regexp"

var (
	hasURLPattern    = regexp.MustCompile(`(?i)https?://`)
	hasNumberPattern = regexp.MustCompile(`\d`)
	hasCapsPattern   = regexp.MustCompile(`[A-Z]{3,}`)
)

// defaultKeywordCount is how many keywords ExtractFeatures keeps
const defaultKeywordCount = 10

// Features are the surface features of a claim
type Features struct {
	Original      string   `json:"original_text"`
	Clean         string   `json:"clean_text"`
	Preprocessed  string   `json:"preprocessed_for_embedding"`
	Sentences     []string `json:"sentences"`
	Keywords      []string `json:"keywords"`
	WordCount     int      `json:"word_count"`
	SentenceCount int      `json:"sentence_count"`
	HasURLs       bool     `json:"has_urls"`
	HasNumbers    bool     `json:"has_numbers"`
	HasCaps       bool     `json:"has_caps"` // a run of 3+ uppercase letters
}

// Empty reports whether the features were extracted from empty input
func (f Features) Empty() bool {
	return f.Original == ""
}

// ExtractFeatures derives claim features. Empty input yields the zero value.
func ExtractFeatures(text string) Features {
	if text == "" {
		return Features{}
	}

	sentences := Sentences(text)

	return Features{
		Original:      text,
		Clean:         Clean(text),
		Preprocessed:  PreprocessForEmbedding(text),
		Sentences:     sentences,
		Keywords:      Keywords(text, defaultKeywordCount),
		WordCount:     len(Tokenize(text, false)),
		SentenceCount: len(sentences),
		HasURLs:       hasURLPattern.MatchString(text),
		HasNumbers:    hasNumberPattern.MatchString(text),
		HasCaps:       hasCapsPattern.MatchString(text),
	}
}
