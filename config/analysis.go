package config

import (
	"fmt"
	"os"
	"strings"

	"post-search/analyzer"

	"github.com/pelletier/go-toml/v2"
)

// AnalysisConfig is the content of the analysis TOML file.
//
//	phrases = ["REST API", "machine learning"]
//	stopwords = ["via"]
//	default_categories = ["backend", "frontend", "devops"]
//
//	[synonyms]
//	js = ["javascript"]
//
//	[tag_aliases]
//	k8s = ["kubernetes"]
type AnalysisConfig struct {
	Synonyms          map[string][]string `toml:"synonyms"`
	Phrases           []string            `toml:"phrases"`
	Stopwords         []string            `toml:"stopwords"`
	DefaultCategories []string            `toml:"default_categories"`
	// TagAliases are registered as synonyms only once a post carries the tag.
	TagAliases map[string][]string `toml:"tag_aliases"`
}

func DefaultAnalysis() *AnalysisConfig {
	return &AnalysisConfig{
		Synonyms:          map[string][]string{},
		DefaultCategories: []string{"backend", "frontend", "devops", "database", "career"},
		TagAliases:        map[string][]string{},
	}
}

// LoadAnalysis reads path, or returns the defaults when path is empty.
func LoadAnalysis(path string) (*AnalysisConfig, error) {
	if path == "" {
		return DefaultAnalysis(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading analysis file: %w", err)
	}

	cfg := DefaultAnalysis()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling analysis file: %w", err)
	}
	if cfg.Synonyms == nil {
		cfg.Synonyms = map[string][]string{}
	}
	if cfg.TagAliases == nil {
		cfg.TagAliases = map[string][]string{}
	}
	return cfg, nil
}

func (a *AnalysisConfig) AnalyzerOptions() analyzer.Options {
	return analyzer.Options{Phrases: a.Phrases, Stopwords: a.Stopwords}
}

// TagSynonyms returns the synonyms derived from the tags present in the index:
// configured aliases plus the spaced spelling of hyphenated tags.
func (a *AnalysisConfig) TagSynonyms(tags []string) map[string][]string {
	out := make(map[string][]string)
	for _, tag := range tags {
		key := strings.ToLower(tag)
		if aliases, ok := a.TagAliases[key]; ok {
			out[key] = append(out[key], aliases...)
		}
		if spaced := strings.ReplaceAll(key, "-", " "); spaced != key {
			out[key] = append(out[key], spaced)
		}
	}
	return out
}
