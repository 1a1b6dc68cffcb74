package analyzer

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const KoreanName = "korean"

// koreanParticles are postpositions and common endings split off an eojeol,
// longest first so "에서는" wins over "는".
var koreanParticles = []string{
	"에서부터", "으로부터",
	"에게서", "한테서", "으로서", "으로써", "이라고", "에서는", "에서도", "이라는",
	"까지", "부터", "에서", "에게", "한테", "께서", "으로", "보다", "처럼", "만큼",
	"이나", "이랑", "라고", "마저", "조차", "라는", "하는", "했다", "한다",
	"은", "는", "이", "가", "을", "를", "에", "의", "도", "와", "과", "로", "만",
}

// Korean splits eojeol at script boundaries and strips trailing particles, so
// "장고를" and "장고는" both index as "장고".
type Korean struct {
	phrases phraseSet
}

func NewKorean(opts Options) *Korean {
	return &Korean{phrases: newPhraseSet(opts.Phrases)}
}

func (k *Korean) Name() string { return KoreanName }

func (k *Korean) Analyze(text string) []string {
	terms, rest := k.phrases.extract(fold(text))
	for _, word := range splitWords(rest) {
		for i, part := range splitHangulRuns(word) {
			if isHangul(firstRune(part)) {
				// A particle attached to a Latin or numeric stem, as in "django를".
				if i > 0 && slices.Contains(koreanParticles, part) {
					continue
				}
				part = stripParticle(part)
			}
			terms = append(terms, part)
		}
	}
	return terms
}

func isHangul(r rune) bool {
	return unicode.Is(unicode.Hangul, r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// splitHangulRuns cuts "django를" into "django" and "를".
func splitHangulRuns(word string) []string {
	var parts []string
	start := 0
	prev := isHangul(firstRune(word))
	for i, r := range word {
		if h := isHangul(r); h != prev {
			parts = append(parts, word[start:i])
			start, prev = i, h
		}
	}
	return append(parts, word[start:])
}

// stripParticle removes one trailing particle while leaving at least one syllable.
func stripParticle(word string) string {
	n := utf8.RuneCountInString(word)
	for _, p := range koreanParticles {
		if n > utf8.RuneCountInString(p) && strings.HasSuffix(word, p) {
			return strings.TrimSuffix(word, p)
		}
	}
	return word
}
