package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// minSentenceLength is the shortest fragment (in characters) kept as a sentence
const minSentenceLength = 10

// maxEmbeddingChars bounds the payload sent to the embedding provider
const maxEmbeddingChars = 1000

var (
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)
	emailPattern      = regexp.MustCompile(`\S+@\S+`)
	cleanDisallowed   = regexp.MustCompile(`[^\p{L}\p{N}_\s.!?,;:]`)
	embedDisallowed   = regexp.MustCompile(`[^\p{L}\p{N}_\s.!?,;:\-']`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	sentenceSplit     = regexp.MustCompile(`[.!?]+`)
	tokenPattern      = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

var stopWords = map[string]bool{
	"i": true, "me": true, "my": true, "myself": true, "we": true, "our": true,
	"ours": true, "ourselves": true, "you": true, "your": true, "yours": true,
	"yourself": true, "yourselves": true, "he": true, "him": true, "his": true,
	"himself": true, "she": true, "her": true, "hers": true, "herself": true,
	"it": true, "its": true, "itself": true, "they": true, "them": true,
	"their": true, "theirs": true, "themselves": true, "what": true, "which": true,
	"who": true, "whom": true, "this": true, "that": true, "these": true,
	"those": true, "am": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"having": true, "do": true, "does": true, "did": true, "doing": true, "a": true,
	"an": true, "the": true, "and": true, "but": true, "if": true, "or": true,
	"because": true, "as": true, "until": true, "while": true, "of": true,
	"at": true, "by": true, "for": true, "with": true, "through": true,
	"during": true, "before": true, "after": true, "above": true, "below": true,
	"up": true, "down": true, "in": true, "out": true, "on": true, "off": true,
	"over": true, "under": true, "again": true, "further": true, "then": true,
	"once": true,
}

// StripMarkup returns the text content of an HTML fragment.
// Plain text passes through with entities decoded.
func StripMarkup(text string) string {
	if text == "" {
		return ""
	}

	var buf strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(text))
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(whitespacePattern.ReplaceAllString(buf.String(), " "))
		case html.StartTagToken:
			if isHiddenTag(tokenizer) {
				skip++
			}
			buf.WriteByte(' ')
		case html.EndTagToken:
			if isHiddenTag(tokenizer) && skip > 0 {
				skip--
			}
			buf.WriteByte(' ')
		case html.SelfClosingTagToken:
			buf.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				buf.Write(tokenizer.Text())
			}
		}
	}
}

func isHiddenTag(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()
	switch string(name) {
	case "script", "style", "noscript", "iframe":
		return true
	}
	return false
}

// Clean normalizes text for keyword work: markup stripped, lowercased,
// URLs and e-mails removed, punctuation outside .!?,;: dropped, whitespace
// collapsed. Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = StripMarkup(text)
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = cleanDisallowed.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// Sentences splits text on terminal punctuation, dropping fragments of
// ten characters or fewer
func Sentences(text string) []string {
	if text == "" {
		return nil
	}

	var sentences []string
	for _, part := range sentenceSplit.Split(text, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > minSentenceLength {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

// Tokenize lowercases and splits text into word tokens longer than two characters
func Tokenize(text string, dropStopwords bool) []string {
	if text == "" {
		return nil
	}

	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if dropStopwords && stopWords[tok] {
			continue
		}
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Keywords returns up to k of the most frequent non-stopword tokens.
// Ties keep first-occurrence order.
func Keywords(text string, k int) []string {
	if text == "" || k <= 0 {
		return nil
	}

	tokens := Tokenize(Clean(text), true)
	counts := make(map[string]int, len(tokens))
	var order []string
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > k {
		order = order[:k]
	}
	return order
}

// PreprocessForEmbedding prepares text for the embedding provider. Case and
// sentence punctuation are kept; long text is cut to its first three sentences.
func PreprocessForEmbedding(text string) string {
	if text == "" {
		return ""
	}

	text = StripMarkup(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = embedDisallowed.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")

	if utf8.RuneCountInString(text) > maxEmbeddingChars {
		sentences := Sentences(text)
		if len(sentences) > 3 {
			sentences = sentences[:3]
		}
		text = strings.Join(sentences, " ")
	}

	return strings.TrimSpace(text)
}
