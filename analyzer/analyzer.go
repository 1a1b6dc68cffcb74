// Package analyzer turns raw text into searchable terms, one pipeline per language.
package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Analyzer converts text into index terms.
type Analyzer interface {
	Name() string
	Analyze(text string) []string
}

// Options tune every analyzer built by a Registry.
type Options struct {
	// Phrases are user dictionary entries kept as a single term, e.g. "REST API".
	Phrases []string
	// Stopwords extend the built-in English stopword list.
	Stopwords []string
}

// fold applies NFKC normalization and Unicode case folding.
func fold(text string) string {
	return cases.Fold().String(norm.NFKC.String(text))
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
	})
}

// phraseSet extracts user dictionary phrases from already folded text.
type phraseSet struct {
	phrases []string
}

func newPhraseSet(phrases []string) phraseSet {
	ps := phraseSet{}
	for _, p := range phrases {
		if f := strings.Join(strings.Fields(fold(p)), " "); f != "" {
			ps.phrases = append(ps.phrases, f)
		}
	}
	return ps
}

// extract returns the phrase terms found in folded and the text with them removed.
func (ps phraseSet) extract(folded string) ([]string, string) {
	if len(ps.phrases) == 0 {
		return nil, folded
	}
	var terms []string
	for _, p := range ps.phrases {
		if !strings.Contains(folded, p) {
			continue
		}
		n := strings.Count(folded, p)
		term := strings.ReplaceAll(p, " ", "_")
		for i := 0; i < n; i++ {
			terms = append(terms, term)
		}
		folded = strings.ReplaceAll(folded, p, " ")
	}
	return terms, folded
}
