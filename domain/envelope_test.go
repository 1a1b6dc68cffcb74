package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_IgnoresCosmeticDifferences(t *testing.T) {
	limits := DefaultQueryLimits()
	a, err := QueryRequest{Text: " Django  Basics", Page: 1, Filters: QueryFilters{Tags: []string{"web", "Python"}}}.Normalize(limits)
	require.NoError(t, err)
	b, err := QueryRequest{Text: "django basics ", Page: 1, PageSize: 20, Filters: QueryFilters{Tags: []string{"python", "WEB"}}}.Normalize(limits)
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DistinguishesPages(t *testing.T) {
	limits := DefaultQueryLimits()
	a, _ := QueryRequest{Text: "go", Page: 1}.Normalize(limits)
	b, _ := QueryRequest{Text: "go", Page: 2}.Normalize(limits)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintOf_PrefixesClass(t *testing.T) {
	fp := FingerprintOf(ClassSuggest, map[string]any{"prefix": "dj", "limit": 5})
	assert.Contains(t, string(fp), "suggest:")
}

func TestNewResponseEnvelope_HasNext(t *testing.T) {
	for total := int64(0); total <= 45; total++ {
		for page := 1; page <= 4; page++ {
			for _, size := range []int{1, 10, 20} {
				env := NewResponseEnvelope(total, nil, page, size, time.Millisecond)
				assert.Equal(t, total > int64(page*size), env.HasNext, "total=%d page=%d size=%d", total, page, size)
			}
		}
	}
}

func TestNewResponseEnvelope_TotalPages(t *testing.T) {
	env := NewResponseEnvelope(41, nil, 1, 20, 0)
	assert.Equal(t, 3, env.TotalPages)
	assert.NotNil(t, env.Results)

	degraded := env.AsDegraded()
	assert.True(t, degraded.Degraded)
	assert.False(t, env.Degraded)
}
