// Package mapper projects source records into index documents.
package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"post-search/analyzer"
	"post-search/domain"
)

const (
	excerptRunes       = 200
	wordsPerMinute     = 200
	maxTitlePrefixTerm = 3
)

// Mapper is stateless; Map has no side effects.
type Mapper struct {
	registry *analyzer.Registry
}

func New(registry *analyzer.Registry) *Mapper {
	return &Mapper{registry: registry}
}

// Map turns a source record into its index document.
func (m *Mapper) Map(r domain.SourceRecord) (domain.IndexDocument, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return domain.IndexDocument{}, &domain.MappingError{Field: "id", Reason: "is required"}
	}
	title := collapseSpace(r.Title)
	if title == "" {
		return domain.IndexDocument{}, &domain.MappingError{RecordID: id, Field: "title", Reason: "is required"}
	}

	body := PlainText(r.Body)
	lang := domain.FoldKeyword(r.Language)
	if lang == "" {
		lang = analyzer.DetectLanguage(title + " " + body)
	}
	a := m.registry.For(lang)
	tags := domain.NormalizeTags(r.Tags)

	doc := domain.IndexDocument{
		ID:            id,
		Title:         title,
		TitleAnalyzed: strings.Join(a.Analyze(title), " "),
		TitleExact:    strings.ToLower(title),
		BodyAnalyzed:  strings.Join(a.Analyze(body), " "),
		Excerpt:       excerpt(body),
		Tags:          tags,
		Category:      domain.FoldKeyword(r.Category),
		Author:        strings.TrimSpace(r.Author),
		Language:      lang,
		Analyzer:      a.Name(),
		SuggestTerms:  SuggestTerms(title, r.Tags),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		CreatedAtTS:   r.CreatedAt.Unix(),
		ViewCount:     r.ViewCount,
		LikeCount:     r.LikeCount,
		ReadingTime:   readingTime(body),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	doc.Checksum = Checksum(doc)
	return doc, nil
}

// MapBatch maps every record, collecting mapping errors instead of stopping.
func (m *Mapper) MapBatch(records []domain.SourceRecord) ([]domain.IndexDocument, []*domain.MappingError) {
	docs := make([]domain.IndexDocument, 0, len(records))
	var errs []*domain.MappingError
	for _, r := range records {
		doc, err := m.Map(r)
		if err != nil {
			var me *domain.MappingError
			if !errors.As(err, &me) {
				me = &domain.MappingError{RecordID: r.ID, Reason: err.Error()}
			}
			errs = append(errs, me)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

// Checksum hashes every mapped field except the checksum itself.
func Checksum(doc domain.IndexDocument) string {
	doc.Checksum = ""
	b, _ := json.Marshal(doc)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SuggestTerms returns the autocomplete entries of a post: the full title, its
// leading word phrases and the tags, deduplicated case-insensitively.
func SuggestTerms(title string, tags []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		term = collapseSpace(term)
		key := strings.ToLower(term)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}

	title = collapseSpace(title)
	add(title)
	words := strings.Fields(title)
	for n := 1; n <= maxTitlePrefixTerm && n < len(words); n++ {
		add(strings.Join(words[:n], " "))
	}
	for _, t := range tags {
		add(t)
	}
	return out
}

func excerpt(body string) string {
	runes := []rune(body)
	if len(runes) <= excerptRunes {
		return body
	}
	return strings.TrimSpace(string(runes[:excerptRunes]))
}

func readingTime(body string) int {
	minutes := len(strings.Fields(body)) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
