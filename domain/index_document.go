package domain

import "time"

// IndexDocument is the normalized projection of a SourceRecord stored in the search index.
// Analyzed fields hold space-joined analyzer tokens; exact fields hold case-folded raw values.
type IndexDocument struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TitleAnalyzed string    `json:"title_analyzed"`
	TitleExact    string    `json:"title_exact"`
	BodyAnalyzed  string    `json:"body_analyzed"`
	Excerpt       string    `json:"excerpt"`
	Tags          []string  `json:"tags"`
	Category      string    `json:"category"`
	Author        string    `json:"author"`
	Language      string    `json:"language"`
	Analyzer      string    `json:"analyzer"`
	SuggestTerms  []string  `json:"suggest_terms"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedAtTS   int64     `json:"created_at_ts"`
	ViewCount     int64     `json:"view_count"`
	LikeCount     int64     `json:"like_count"`
	ReadingTime   int       `json:"reading_time"`
	Checksum      string    `json:"checksum"`
}

// SearchHit is one ranked result in a response envelope.
type SearchHit struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
	ViewCount   int64     `json:"view_count"`
	LikeCount   int64     `json:"like_count"`
	ReadingTime int       `json:"reading_time"`
	Score       float64   `json:"score,omitempty"`
}

func NewSearchHit(doc IndexDocument, score float64) SearchHit {
	return SearchHit{
		ID:          doc.ID,
		Title:       doc.Title,
		Excerpt:     doc.Excerpt,
		Tags:        doc.Tags,
		Category:    doc.Category,
		Author:      doc.Author,
		Language:    doc.Language,
		CreatedAt:   doc.CreatedAt,
		ViewCount:   doc.ViewCount,
		LikeCount:   doc.LikeCount,
		ReadingTime: doc.ReadingTime,
		Score:       score,
	}
}
