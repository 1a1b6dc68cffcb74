package domain

import "time"

// SourceRecord is a post as stored in the source store. It is read-only here.
type SourceRecord struct {
	ID        string
	Title     string
	Body      string
	Tags      []string
	Category  string
	Author    string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
	ViewCount int64
	LikeCount int64
	Deleted   bool
}

// Marker returns the change marker of the record for cursor bookkeeping.
func (r SourceRecord) Marker(source string) SyncCursor {
	return SyncCursor{Source: source, UpdatedAt: r.UpdatedAt, RecordID: r.ID}
}

func (r SourceRecord) HasTag(tag string) bool {
	if tag == "" {
		return false
	}
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
