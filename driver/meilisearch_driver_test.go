package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilter(t *testing.T) {
	from := time.Unix(1700000000, 0)
	to := time.Unix(1700086400, 0)

	tests := []struct {
		name     string
		params   FilterParams
		expected string
	}{
		{
			name:     "empty filters",
			params:   FilterParams{},
			expected: "",
		},
		{
			name:     "single tag",
			params:   FilterParams{Tags: []string{"technology"}},
			expected: "tags = \"technology\"",
		},
		{
			name:     "all tags must match",
			params:   FilterParams{Tags: []string{"technology", "programming"}},
			expected: "tags = \"technology\" AND tags = \"programming\"",
		},
		{
			name:     "quotes are escaped",
			params:   FilterParams{Tags: []string{"tech\"malicious"}},
			expected: "tags = \"tech\\\"malicious\"",
		},
		{
			name:     "category author and dates",
			params:   FilterParams{Category: "backend", Author: "kim", DateFrom: &from, DateTo: &to},
			expected: "category = \"backend\" AND author = \"kim\" AND created_at_ts >= 1700000000 AND created_at_ts <= 1700086400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildFilter(tt.params))
		})
	}
}

func TestBuildFilter_InjectionStaysQuoted(t *testing.T) {
	malicious := []string{
		`" OR tags = "admin`,
		`\" OR 1=1`,
		`tag\`,
	}
	for _, m := range malicious {
		got := BuildFilter(FilterParams{Tags: []string{m}})
		assert.Equal(t, fmt.Sprintf("tags = \"%s\"", escapeMeilisearchValue(m)), got)
		assert.NotContains(t, got, `" OR tags = "`)
	}
}

func TestNewDriverError_Classifies(t *testing.T) {
	de := newDriverError("Search", context.DeadlineExceeded)
	assert.True(t, de.Timeout)
	assert.False(t, de.Unavailable)

	de = newDriverError("Search", &meilisearch.Error{StatusCode: 503})
	assert.True(t, de.Unavailable)

	de = newDriverError("Search", &meilisearch.Error{StatusCode: 400})
	assert.False(t, de.Unavailable)

	de = newDriverError("Search", errors.New("plain"))
	assert.False(t, de.Unavailable)
	assert.Equal(t, "Search: plain", de.Error())
}

func TestDecodeHits(t *testing.T) {
	hit := make(meilisearch.Hit)
	for k, v := range map[string]interface{}{
		"id":            "p1",
		"title":         "Django Basics",
		"tags":          []string{"django"},
		"checksum":      "abc",
		"_rankingScore": 0.75,
	} {
		b, _ := json.Marshal(v)
		hit[k] = b
	}

	docs, err := decodeHits([]meilisearch.Hit{hit})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0].ID)
	assert.Equal(t, []string{"django"}, docs[0].Tags)
	assert.InDelta(t, 0.75, docs[0].RankingScore, 0.0001)
}

// fakeIndex records the calls the driver makes; unimplemented methods panic.
type fakeIndex struct {
	meilisearch.IndexManager
	nextUID    int64
	failed     map[int64]bool
	added      []interface{}
	deleted    []string
	filterable []interface{}
	sortable   []string
	fetchErr   error
}

func (f *fakeIndex) task() *meilisearch.TaskInfo {
	f.nextUID++
	return &meilisearch.TaskInfo{TaskUID: f.nextUID, Status: meilisearch.TaskStatusEnqueued}
}

func (f *fakeIndex) AddDocuments(docs interface{}, opts *meilisearch.DocumentOptions) (*meilisearch.TaskInfo, error) {
	f.added = append(f.added, docs)
	return f.task(), nil
}

func (f *fakeIndex) DeleteDocuments(ids []string, opts *meilisearch.DocumentOptions) (*meilisearch.TaskInfo, error) {
	f.deleted = append(f.deleted, ids...)
	return f.task(), nil
}

func (f *fakeIndex) DeleteDocument(id string, opts *meilisearch.DocumentOptions) (*meilisearch.TaskInfo, error) {
	f.deleted = append(f.deleted, id)
	return f.task(), nil
}

func (f *fakeIndex) WaitForTaskWithContext(ctx context.Context, uid int64, interval time.Duration) (*meilisearch.Task, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("wait without deadline")
	}
	if f.failed[uid] {
		task := &meilisearch.Task{TaskUID: uid, Status: meilisearch.TaskStatusFailed}
		task.Error.Message = "invalid document"
		return task, nil
	}
	return &meilisearch.Task{TaskUID: uid, Status: meilisearch.TaskStatusSucceeded}, nil
}

func (f *fakeIndex) FetchInfo() (*meilisearch.IndexResult, error) {
	return &meilisearch.IndexResult{}, f.fetchErr
}

func (f *fakeIndex) UpdateFilterableAttributes(attrs *[]interface{}) (*meilisearch.TaskInfo, error) {
	f.filterable = *attrs
	return f.task(), nil
}

func (f *fakeIndex) UpdateSortableAttributes(attrs *[]string) (*meilisearch.TaskInfo, error) {
	f.sortable = *attrs
	return f.task(), nil
}

func (f *fakeIndex) UpdateSearchableAttributes(attrs *[]string) (*meilisearch.TaskInfo, error) {
	return f.task(), nil
}

func (f *fakeIndex) UpdateRankingRules(rules *[]string) (*meilisearch.TaskInfo, error) {
	return f.task(), nil
}

func TestMeilisearchDriver_WritesWaitForTasks(t *testing.T) {
	idx := &fakeIndex{failed: map[int64]bool{2: true}}
	d := &MeilisearchDriver{index: idx, taskTimeout: time.Second}
	ctx := context.Background()

	require.NoError(t, d.AddDocuments(ctx, []PostDocument{{ID: "p1"}}))
	assert.Equal(t, []interface{}{[]PostDocument{{ID: "p1"}}}, idx.added)

	err := d.DeleteDocuments(ctx, []string{"p2"})
	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "DeleteDocuments", de.Op)
	assert.Contains(t, de.Err, "invalid document")
	assert.Equal(t, []string{"p2"}, idx.deleted)
}

func TestMeilisearchDriver_EnsureIndex(t *testing.T) {
	t.Run("existing index gets settings only", func(t *testing.T) {
		idx := &fakeIndex{}
		d := &MeilisearchDriver{index: idx, taskTimeout: time.Second}

		require.NoError(t, d.EnsureIndex(context.Background()))
		assert.Empty(t, idx.added)
		assert.Equal(t, []interface{}{"category", "tags", "author", "language", "created_at_ts"}, idx.filterable)
		assert.Equal(t, sortableAttributes, idx.sortable)
	})

	t.Run("missing index is created and the seed removed", func(t *testing.T) {
		idx := &fakeIndex{fetchErr: &meilisearch.Error{StatusCode: 404}}
		d := &MeilisearchDriver{index: idx, taskTimeout: time.Second}

		require.NoError(t, d.EnsureIndex(context.Background()))
		assert.Len(t, idx.added, 1)
		assert.Equal(t, []string{"init"}, idx.deleted)
		assert.NotEmpty(t, idx.filterable)
	})
}
