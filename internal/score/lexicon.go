package score

import (
	"regexp"
	"strings"
	"unicode"
)

// lexicon matches a fixed term list against text. Terms made of letters,
// spaces and hyphens match on word boundaries so that "all" does not fire
// on "really". Any other term ("%", "2024") matches as a substring.
type lexicon struct {
	words     *regexp.Regexp
	fragments []string
}

func newLexicon(terms ...string) lexicon {
	var l lexicon
	var words []string
	for _, term := range terms {
		term = strings.ToLower(term)
		if isWordTerm(term) {
			words = append(words, regexp.QuoteMeta(term))
		} else {
			l.fragments = append(l.fragments, term)
		}
	}
	if len(words) > 0 {
		l.words = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return l
}

func isWordTerm(term string) bool {
	if term == "" {
		return false
	}
	for _, r := range term {
		if !unicode.IsLetter(r) && r != ' ' && r != '-' {
			return false
		}
	}
	return true
}

// matches reports whether any term occurs in text
func (l lexicon) matches(text string) bool {
	if l.words != nil && l.words.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, f := range l.fragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

var (
	scientificTerms = newLexicon("study", "research", "clinical trial", "scientific", "evidence",
		"data", "according to", "published", "peer-reviewed", "journal")
	authorityTerms = newLexicon("cdc", "who", "fda", "nasa", "government", "official",
		"university", "medical center", "hospital", "institute")
	uncertaintyTerms = newLexicon("maybe", "possibly", "might", "could", "allegedly",
		"reportedly", "supposedly", "rumor", "unconfirmed")
	absoluteTerms = newLexicon("always", "never", "all", "every", "none", "completely",
		"totally", "absolutely", "definitely", "guaranteed")
	sensationalTerms = newLexicon("shocking", "unbelievable", "amazing", "incredible", "secret",
		"exposed", "conspiracy", "cover-up", "scandal", "breaking")
	emotionalTerms = newLexicon("fear", "panic", "terrifying", "horrifying", "outrageous",
		"disgusting", "shameful")
	factualTerms = newLexicon("percent", "%", "million", "billion", "study shows",
		"research indicates", "data shows")

	credibilityTerms = newLexicon("study", "research", "according to", "expert", "official",
		"government", "university", "journal", "published")
	recentYears    = newLexicon("2023", "2024", "2025")
	statisticTerms = newLexicon("%", "$", "million", "billion", "thousand")
)
