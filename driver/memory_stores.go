package driver

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemorySourceDriver is an in-process source of posts, seeded from a JSON file
// or by tests.
type MemorySourceDriver struct {
	mu   sync.RWMutex
	rows map[string]PostRow
}

func NewMemorySourceDriver(rows ...PostRow) *MemorySourceDriver {
	d := &MemorySourceDriver{rows: make(map[string]PostRow)}
	d.Put(rows...)
	return d
}

type seedPost struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Tags      []string   `json:"tags"`
	Category  string     `json:"category"`
	Author    string     `json:"author"`
	Language  string     `json:"language"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ViewCount int64      `json:"view_count"`
	LikeCount int64      `json:"like_count"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// LoadMemorySource reads a JSON array of posts.
func LoadMemorySource(path string) (*MemorySourceDriver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newDriverError("LoadMemorySource", err)
	}
	var seeds []seedPost
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, &DriverError{Op: "LoadMemorySource", Err: "invalid seed file: " + err.Error()}
	}

	d := NewMemorySourceDriver()
	for _, s := range seeds {
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = s.CreatedAt
		}
		d.Put(PostRow(s))
	}
	return d, nil
}

// Put inserts or replaces rows.
func (d *MemorySourceDriver) Put(rows ...PostRow) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range rows {
		d.rows[r.ID] = r
	}
}

// Remove hard-deletes rows, as a source without soft delete would.
func (d *MemorySourceDriver) Remove(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		delete(d.rows, id)
	}
}

func (d *MemorySourceDriver) sorted() []PostRow {
	out := make([]PostRow, 0, len(d.rows))
	for _, r := range d.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *MemorySourceDriver) ListChanged(ctx context.Context, afterUpdatedAt time.Time, afterID string, limit int) ([]PostRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []PostRow
	for _, r := range d.sorted() {
		after := r.UpdatedAt.After(afterUpdatedAt) ||
			(r.UpdatedAt.Equal(afterUpdatedAt) && r.ID > afterID)
		if !after {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *MemorySourceDriver) GetByIDs(ctx context.Context, ids []string) ([]PostRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []PostRow
	for _, r := range d.sorted() {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *MemorySourceDriver) Count(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var n int64
	for _, r := range d.rows {
		if r.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (d *MemorySourceDriver) Ping(ctx context.Context) error { return nil }

// MemoryCursorDriver keeps cursors in process with the same forward-only rule
// as the Postgres upsert.
type MemoryCursorDriver struct {
	mu      sync.Mutex
	cursors map[string]CursorRow
}

func NewMemoryCursorDriver() *MemoryCursorDriver {
	return &MemoryCursorDriver{cursors: make(map[string]CursorRow)}
}

func (d *MemoryCursorDriver) LoadCursor(ctx context.Context, source string) (CursorRow, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	row, ok := d.cursors[source]
	if !ok {
		return CursorRow{Source: source}, false, nil
	}
	return row, true, nil
}

func (d *MemoryCursorDriver) SaveCursor(ctx context.Context, c CursorRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.cursors[c.Source]
	if ok {
		newer := c.UpdatedAt.After(cur.UpdatedAt) ||
			(c.UpdatedAt.Equal(cur.UpdatedAt) && c.RecordID > cur.RecordID)
		if !newer {
			return nil
		}
	}
	d.cursors[c.Source] = c
	return nil
}

// MemorySearchLogDriver keeps search log rows in process.
type MemorySearchLogDriver struct {
	mu   sync.Mutex
	rows []SearchLogRow
}

func NewMemorySearchLogDriver() *MemorySearchLogDriver {
	return &MemorySearchLogDriver{}
}

func (d *MemorySearchLogDriver) InsertBatch(ctx context.Context, rows []SearchLogRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = append(d.rows, rows...)
	return nil
}

// Rows returns a copy of everything written so far.
func (d *MemorySearchLogDriver) Rows() []SearchLogRow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SearchLogRow(nil), d.rows...)
}

func (d *MemorySearchLogDriver) TopQueries(ctx context.Context, limit int) ([]PopularSearchRow, error) {
	d.mu.Lock()
	agg := make(map[string]*PopularSearchRow)
	for _, r := range d.rows {
		if r.ClickedResultID != "" {
			continue
		}
		q := strings.ToLower(r.Query)
		p, ok := agg[q]
		if !ok {
			p = &PopularSearchRow{Query: q}
			agg[q] = p
		}
		p.SearchCount++
		if r.SearchTime.After(p.LastSearched) {
			p.LastSearched = r.SearchTime
		}
	}
	d.mu.Unlock()

	out := make([]PopularSearchRow, 0, len(agg))
	for _, p := range agg {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SearchCount != out[j].SearchCount {
			return out[i].SearchCount > out[j].SearchCount
		}
		if !out[i].LastSearched.Equal(out[j].LastSearched) {
			return out[i].LastSearched.After(out[j].LastSearched)
		}
		return out[i].Query < out[j].Query
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *MemorySearchLogDriver) AggregateCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int64)
	for _, r := range d.rows {
		if r.ClickedResultID != "" || r.SearchTime.Before(since) {
			continue
		}
		out[strings.ToLower(r.Query)]++
	}
	return out, nil
}
