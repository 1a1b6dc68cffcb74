package analyzer

const GenericName = "generic"

// Generic is the language-neutral fallback: word split plus Unicode folding.
type Generic struct {
	phrases phraseSet
}

func NewGeneric(opts Options) *Generic {
	return &Generic{phrases: newPhraseSet(opts.Phrases)}
}

func (g *Generic) Name() string { return GenericName }

func (g *Generic) Analyze(text string) []string {
	terms, rest := g.phrases.extract(fold(text))
	return append(terms, splitWords(rest)...)
}
