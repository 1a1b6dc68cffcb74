package mapper

import (
	"strings"
	"testing"
	"time"

	"post-search/analyzer"
	"post-search/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapper() *Mapper {
	return New(analyzer.NewDefaultRegistry(nil, analyzer.Options{}))
}

func TestMapper_Map(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := domain.SourceRecord{
		ID:        "p1",
		Title:     "  Django   Elasticsearch Integration ",
		Body:      "<p>Connecting <b>Django</b> to search.</p><script>alert(1)</script>",
		Tags:      []string{"Python", "django", "python"},
		Category:  "Backend",
		Author:    "kim",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		ViewCount: 10,
	}

	doc, err := newTestMapper().Map(rec)
	require.NoError(t, err)

	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "Django Elasticsearch Integration", doc.Title)
	assert.Equal(t, "django elasticsearch integration", doc.TitleExact)
	assert.Equal(t, "django elasticsearch integr", doc.TitleAnalyzed)
	assert.Equal(t, "Connecting Django to search.", doc.Excerpt)
	assert.NotContains(t, doc.BodyAnalyzed, "alert")
	assert.Equal(t, []string{"django", "python"}, doc.Tags)
	assert.Equal(t, "backend", doc.Category)
	assert.Equal(t, analyzer.LangEnglish, doc.Language)
	assert.Equal(t, analyzer.EnglishName, doc.Analyzer)
	assert.Equal(t, created.Unix(), doc.CreatedAtTS)
	assert.Equal(t, 1, doc.ReadingTime)
	assert.NotEmpty(t, doc.Checksum)
}

func TestMapper_MapRequiresIDAndTitle(t *testing.T) {
	m := newTestMapper()

	_, err := m.Map(domain.SourceRecord{Title: "no id"})
	require.Error(t, err)
	assert.True(t, domain.IsMapping(err))

	_, err = m.Map(domain.SourceRecord{ID: "p2", Title: "   "})
	require.Error(t, err)
	var me *domain.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "p2", me.RecordID)
	assert.Equal(t, "title", me.Field)
}

func TestMapper_DeclaredLanguageWins(t *testing.T) {
	doc, err := newTestMapper().Map(domain.SourceRecord{ID: "k1", Title: "장고 기초", Language: "KO"})
	require.NoError(t, err)
	assert.Equal(t, "ko", doc.Language)
	assert.Equal(t, analyzer.KoreanName, doc.Analyzer)
	assert.Equal(t, "장고 기초", doc.TitleAnalyzed)
}

func TestMapper_KoreanParticlesAreSeparated(t *testing.T) {
	doc, err := newTestMapper().Map(domain.SourceRecord{ID: "k2", Title: "장고를 배우는 방법", Body: "장고는 파이썬 웹 프레임워크입니다."})
	require.NoError(t, err)
	assert.Equal(t, "ko", doc.Language)
	assert.Equal(t, analyzer.KoreanName, doc.Analyzer)
	assert.Equal(t, "장고 배우 방법", doc.TitleAnalyzed)
	assert.Contains(t, doc.BodyAnalyzed, "장고 파이썬")
}

func TestMapper_ChecksumIsStable(t *testing.T) {
	m := newTestMapper()
	rec := domain.SourceRecord{ID: "p1", Title: "Go", Body: "body", CreatedAt: time.Unix(100, 0)}

	a, err := m.Map(rec)
	require.NoError(t, err)
	b, err := m.Map(rec)
	require.NoError(t, err)
	assert.Equal(t, a.Checksum, b.Checksum)

	rec.Title = "Go 2"
	c, err := m.Map(rec)
	require.NoError(t, err)
	assert.NotEqual(t, a.Checksum, c.Checksum)
}

func TestMapper_MapBatch(t *testing.T) {
	docs, errs := newTestMapper().MapBatch([]domain.SourceRecord{
		{ID: "1", Title: "ok"},
		{ID: "2"},
		{ID: "3", Title: "also ok"},
	})
	assert.Len(t, docs, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, "2", errs[0].RecordID)
}

func TestSuggestTerms(t *testing.T) {
	got := SuggestTerms("Django REST Framework Guide", []string{"django", "Web"})
	assert.Equal(t, []string{
		"Django REST Framework Guide",
		"Django",
		"Django REST",
		"Django REST Framework",
		"Web",
	}, got)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain", "  hello   world ", "hello world"},
		{"html", "<div><h1>Title</h1><style>p{}</style><p>Body</p></div>", "Title Body"},
		{"rich text", `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"First"}]},{"type":"paragraph","content":[{"type":"text","text":"Second"}]}]}`, "First Second"},
		{"json that is not a doc", `{"a":1}`, `{"a":1}`},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.body))
		})
	}
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, readingTime("short"))
	assert.Equal(t, 3, readingTime(strings.Repeat("word ", 650)))
}
