package analyzer

import (
	"github.com/kljensen/snowball/english"
)

const EnglishName = "english"

var englishStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on", "that", "the", "to", "was", "were", "will",
	"with", "this", "but", "they", "have", "had", "what", "when", "where", "who",
	"which", "why", "how", "or", "not", "no", "so", "than", "too", "very", "can",
}

// English folds, drops stopwords and applies the Snowball English stemmer.
type English struct {
	phrases   phraseSet
	stopwords map[string]struct{}
}

func NewEnglish(opts Options) *English {
	stop := make(map[string]struct{}, len(englishStopwords)+len(opts.Stopwords))
	for _, w := range englishStopwords {
		stop[w] = struct{}{}
	}
	for _, w := range opts.Stopwords {
		stop[fold(w)] = struct{}{}
	}
	return &English{phrases: newPhraseSet(opts.Phrases), stopwords: stop}
}

func (e *English) Name() string { return EnglishName }

func (e *English) Analyze(text string) []string {
	terms, rest := e.phrases.extract(fold(text))
	for _, w := range splitWords(rest) {
		if _, stop := e.stopwords[w]; stop {
			continue
		}
		terms = append(terms, english.Stem(w, false))
	}
	return terms
}
