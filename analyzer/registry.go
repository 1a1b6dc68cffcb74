package analyzer

import (
	"unicode"

	"github.com/ikawaha/kagome/v2/tokenizer"
)

const (
	LangKorean   = "ko"
	LangJapanese = "ja"
	LangEnglish  = "en"
)

// DetectLanguage guesses the language of text from its script.
// Hangul wins over kana, and kana or Han without Hangul is treated as Japanese.
func DetectLanguage(text string) string {
	var kana, han bool
	for _, r := range text {
		switch {
		case r >= 0xAC00 && r <= 0xD7A3:
			return LangKorean
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana = true
		case unicode.Is(unicode.Han, r):
			han = true
		}
	}
	if kana || han {
		return LangJapanese
	}
	return LangEnglish
}

// Registry resolves the analyzer for a language, falling back to the generic one.
type Registry struct {
	byLang   map[string]Analyzer
	byName   map[string]Analyzer
	fallback Analyzer
}

func NewRegistry(fallback Analyzer, byLang map[string]Analyzer) *Registry {
	r := &Registry{
		byLang:   make(map[string]Analyzer, len(byLang)),
		byName:   map[string]Analyzer{fallback.Name(): fallback},
		fallback: fallback,
	}
	for lang, a := range byLang {
		r.byLang[lang] = a
		r.byName[a.Name()] = a
	}
	return r
}

// NewDefaultRegistry wires English, Korean and, when a tokenizer is available,
// Japanese. Unknown languages use the generic analyzer.
func NewDefaultRegistry(t *tokenizer.Tokenizer, opts Options) *Registry {
	byLang := map[string]Analyzer{
		LangEnglish: NewEnglish(opts),
		LangKorean:  NewKorean(opts),
	}
	if t != nil {
		byLang[LangJapanese] = NewJapanese(t, opts)
	}
	return NewRegistry(NewGeneric(opts), byLang)
}

func (r *Registry) For(lang string) Analyzer {
	if a, ok := r.byLang[lang]; ok {
		return a
	}
	return r.fallback
}

// AnalyzeAll runs text through every registered analyzer, keyed by analyzer name,
// so query terms can be matched against documents of any language.
func (r *Registry) AnalyzeAll(text string) map[string][]string {
	out := make(map[string][]string, len(r.byName))
	for name, a := range r.byName {
		out[name] = a.Analyze(text)
	}
	return out
}
