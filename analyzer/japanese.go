package analyzer

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

const JapaneseName = "japanese"

// skipped parts of speech: symbols, particles, auxiliary verbs.
var japaneseSkipPOS = map[string]struct{}{
	"記号":  {},
	"助詞":  {},
	"助動詞": {},
}

func InitTokenizer() (*tokenizer.Tokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Japanese segments text with kagome and indexes base forms.
type Japanese struct {
	t       *tokenizer.Tokenizer
	phrases phraseSet
}

func NewJapanese(t *tokenizer.Tokenizer, opts Options) *Japanese {
	return &Japanese{t: t, phrases: newPhraseSet(opts.Phrases)}
}

func (j *Japanese) Name() string { return JapaneseName }

func (j *Japanese) Analyze(text string) []string {
	terms, rest := j.phrases.extract(fold(text))
	for _, tok := range j.t.Tokenize(rest) {
		if pos := tok.POS(); len(pos) > 0 {
			if _, skip := japaneseSkipPOS[pos[0]]; skip {
				continue
			}
		}
		surface := tok.Surface
		if base, ok := tok.BaseForm(); ok && base != "*" && base != "" {
			surface = base
		}
		terms = append(terms, splitWords(surface)...)
	}
	return terms
}

func containsJapanese(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}

// TagSynonyms maps every Japanese tag to its segmented words so a search for a
// component word also finds the compound tag. Other tags need no entry.
func TagSynonyms(t *tokenizer.Tokenizer, tags []string) map[string][]string {
	result := make(map[string][]string)
	if t == nil {
		return result
	}
	for _, tag := range tags {
		if !containsJapanese(tag) {
			continue
		}
		words := make([]string, 0, 4)
		for _, w := range t.Wakati(tag) {
			if w = strings.TrimSpace(w); w != "" && w != tag {
				words = append(words, w)
			}
		}
		if len(words) > 0 {
			result[tag] = words
		}
	}
	return result
}
