package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRequest_Normalize(t *testing.T) {
	limits := DefaultQueryLimits()
	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		req      QueryRequest
		wantErr  func(error) bool
		wantSize int
	}{
		{name: "page zero", req: QueryRequest{Page: 0}, wantErr: IsValidation},
		{name: "negative page size", req: QueryRequest{Page: 1, PageSize: -1}, wantErr: IsValidation},
		{name: "inverted date range", req: QueryRequest{Page: 1, Filters: QueryFilters{DateFrom: &from, DateTo: &to}}, wantErr: IsValidation},
		{name: "unknown sort", req: QueryRequest{Page: 1, Sort: "random"}, wantErr: IsValidation},
		{name: "bad tag", req: QueryRequest{Page: 1, Filters: QueryFilters{Tags: []string{"go;drop"}}}, wantErr: IsValidation},
		{name: "offset beyond max", req: QueryRequest{Page: 52, PageSize: 20}, wantErr: IsPaginationRange},
		{name: "default page size", req: QueryRequest{Page: 1}, wantSize: 20},
		{name: "clamped page size", req: QueryRequest{Page: 1, PageSize: 500}, wantSize: 100},
		{name: "explicit page size", req: QueryRequest{Page: 3, PageSize: 7}, wantSize: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Normalize(limits)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error type: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, got.PageSize)
			assert.Equal(t, SortRelevance, got.Sort)
		})
	}
}

func TestQueryRequest_NormalizeCanonicalizesFilters(t *testing.T) {
	req := QueryRequest{
		Text:     "  Django   REST ",
		Page:     1,
		Filters:  QueryFilters{Category: " Backend ", Tags: []string{"Python", "django", "python"}},
		PageSize: 10,
	}
	got, err := req.Normalize(DefaultQueryLimits())
	require.NoError(t, err)

	assert.Equal(t, "Django REST", got.Text)
	assert.Equal(t, "backend", got.Filters.Category)
	assert.Equal(t, []string{"django", "python"}, got.Filters.Tags)
	assert.Equal(t, []string{"Python", "django", "python"}, req.Filters.Tags, "input must not be mutated")
}

func TestQueryRequest_IsListing(t *testing.T) {
	assert.True(t, QueryRequest{Page: 1}.IsListing())
	assert.False(t, QueryRequest{Text: "go"}.IsListing())
	assert.False(t, QueryRequest{Filters: QueryFilters{Category: "backend"}}.IsListing())
}

func TestValidateFilterTags(t *testing.T) {
	assert.NoError(t, ValidateFilterTags([]string{"go", "日本語", "rest-api", "snake_case"}))
	assert.Error(t, ValidateFilterTags([]string{" "}))
	assert.Error(t, ValidateFilterTags([]string{"a\x00b"}))
	assert.Error(t, ValidateFilterTags(make([]string, 11)))
}
