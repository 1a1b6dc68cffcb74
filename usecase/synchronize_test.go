package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"post-search/domain"
	"post-search/driver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threePosts() []driver.PostRow {
	return []driver.PostRow{
		post("p1", "Django Basics", "Getting started with the framework.", 1, "django"),
		post("p2", "Elasticsearch Guide", "Index and query documents.", 2, "search"),
		post("p3", "Django Elasticsearch Integration", "Connect django models to search.", 3, "django", "search"),
	}
}

func TestSyncIncrementalFromStore(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{BatchSize: 2}, threePosts()...)

	report, err := f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncCompleted, report.Status)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Upserted)
	assert.Empty(t, report.Failures)
	assert.True(t, report.CursorBefore.IsZero())
	assert.Equal(t, "p3", report.CursorAfter.RecordID)
	assert.Equal(t, baseTime.Add(3*time.Minute), report.CursorAfter.UpdatedAt)

	stored, err := f.cursors.Load(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, report.CursorAfter.RecordID, stored.RecordID)

	n, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	terms, err := f.suggestions.Terms(ctx)
	require.NoError(t, err)
	assert.Contains(t, terms, "Django Basics")
	assert.Contains(t, f.purger.classes, domain.ClassSuggest)
	assert.Contains(t, f.purger.classes, domain.ClassCategories)
	assert.NotContains(t, f.purger.classes, domain.ClassSearch)

	// Nothing changed: the stored cursor makes the next run a no-op.
	before := f.index.mutations()
	report, err = f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, before, f.index.mutations())

	f.source.Put(post("p1", "Django Basics Revised", "Updated body.", 10, "django"))
	report, err = f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, "p1", report.CursorAfter.RecordID)

	doc, err := f.index.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Django Basics Revised", doc.Title)
}

func TestSyncIncremental_SoftDeleteRemovesDocument(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	_, err := f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)

	gone := post("p2", "Elasticsearch Guide", "", 20)
	deletedAt := gone.UpdatedAt
	gone.DeletedAt = &deletedAt
	f.source.Put(gone)

	report, err := f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	_, err = f.index.Get(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncIncremental_MappingErrorIsSkipped(t *testing.T) {
	ctx := context.Background()
	rows := threePosts()
	rows[1].Title = "   "
	f := newSyncFixture(SyncOptions{}, rows...)

	report, err := f.usecase.SyncIncremental(ctx, domain.SyncCursor{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Upserted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, domain.StageMap, report.Failures[0].Stage)
	assert.Equal(t, "p2", report.Failures[0].RecordID)
	assert.Equal(t, domain.SyncPartial, report.Status)
	assert.Equal(t, "p3", report.CursorAfter.RecordID)
}

func TestSyncIncremental_CursorSafety(t *testing.T) {
	permanent := func(docs []domain.IndexDocument) error {
		for _, d := range docs {
			if d.ID == "p2" {
				return &domain.SearchEngineError{Op: "Upsert", Err: "document rejected"}
			}
		}
		return nil
	}

	var mu sync.Mutex
	attempts := map[string]int{}
	transient := func(docs []domain.IndexDocument) error {
		mu.Lock()
		defer mu.Unlock()
		for _, d := range docs {
			attempts[d.ID]++
			if d.ID == "p2" && attempts[d.ID] == 1 {
				return &domain.TimeoutError{Op: "Upsert", Err: "deadline exceeded"}
			}
		}
		return nil
	}

	unavailable := func(docs []domain.IndexDocument) error {
		return &domain.IndexUnavailableError{Op: "Upsert", Err: "connection refused"}
	}

	tests := []struct {
		name         string
		fail         func(docs []domain.IndexDocument) error
		wantErr      bool
		wantUpserted int
		wantFailures int
		wantAdvance  bool
	}{
		{
			name:         "item exhausting retries freezes the cursor",
			fail:         permanent,
			wantUpserted: 2,
			wantFailures: 1,
			wantAdvance:  false,
		},
		{
			name:         "transient item failure recovers on retry",
			fail:         transient,
			wantUpserted: 3,
			wantAdvance:  true,
		},
		{
			name:        "unavailable index aborts the run",
			fail:        unavailable,
			wantErr:     true,
			wantAdvance: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newSyncFixture(SyncOptions{MaxRetries: 2}, threePosts()...)
			f.index.failUpsert = tt.fail

			report, err := f.usecase.SyncIncrementalFromStore(ctx)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsUnavailable(err))
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, report)
			assert.Equal(t, tt.wantUpserted, report.Upserted)
			assert.Len(t, report.Failures, tt.wantFailures)

			stored, err := f.cursors.Load(ctx, "posts")
			require.NoError(t, err)
			if tt.wantAdvance {
				assert.Equal(t, "p3", report.CursorAfter.RecordID)
				assert.Equal(t, "p3", stored.RecordID)
			} else {
				assert.Equal(t, report.CursorBefore, report.CursorAfter)
				assert.True(t, stored.IsZero())
			}
		})
	}
}

func TestSyncIncremental_FailedItemRecordsAttempts(t *testing.T) {
	f := newSyncFixture(SyncOptions{MaxRetries: 2}, threePosts()...)
	f.index.failUpsert = func(docs []domain.IndexDocument) error {
		if slices.ContainsFunc(docs, func(d domain.IndexDocument) bool { return d.ID == "p1" }) {
			return errors.New("boom")
		}
		return nil
	}

	report, err := f.usecase.SyncIncremental(context.Background(), domain.SyncCursor{})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "p1", report.Failures[0].RecordID)
	assert.Equal(t, domain.StageUpsert, report.Failures[0].Stage)
	assert.Equal(t, 3, report.Failures[0].Attempts)
	assert.True(t, report.HasWriteFailures())
}

func TestSyncIncremental_UnavailableStopsPaging(t *testing.T) {
	f := newSyncFixture(SyncOptions{BatchSize: 1}, threePosts()...)
	f.index.failUpsert = func(docs []domain.IndexDocument) error {
		return &domain.IndexUnavailableError{Op: "Upsert", Err: "down"}
	}

	report, err := f.usecase.SyncIncremental(context.Background(), domain.SyncCursor{})
	require.Error(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, f.index.mutations())
	assert.Equal(t, domain.SyncFailed, report.Status)
}

func TestSync_LeaseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	release, err := f.lease.Acquire(ctx, "sync:posts")
	require.NoError(t, err)
	defer release()

	_, err = f.usecase.SyncIncrementalFromStore(ctx)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	_, err = f.usecase.SyncFull(ctx)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	_, err = f.usecase.SyncRecords(ctx, []string{"p1"})
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Equal(t, 0, f.index.mutations())
}

func TestSyncFull_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{BatchSize: 2}, threePosts()...)

	first, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Upserted)
	assert.Equal(t, "p3", first.CursorAfter.RecordID)

	before := f.index.mutations()
	second, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Mutations())
	assert.Equal(t, 3, second.Unchanged)
	assert.Equal(t, before, f.index.mutations())
}

func TestSyncFull_RemovesDeletedRecords(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	_, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)

	f.source.Remove("p2")
	report, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 0, report.Upserted)

	_, err = f.index.Get(ctx, "p2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err := f.index.Search(ctx, domain.IndexQuery{
		Terms:      map[string][]string{"english": {"elasticsearch", "guid"}},
		TitleBoost: 2, BodyBoost: 1,
	})
	require.NoError(t, err)
	for _, h := range res.Hits {
		assert.NotEqual(t, "p2", h.Document.ID)
	}
}

func TestSyncFull_ReplacesChangedDocumentsOnly(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	_, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)

	f.source.Put(post("p2", "Elasticsearch Guide, Second Edition", "New chapters.", 30, "search"))
	report, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 2, report.Unchanged)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, "p2", report.CursorAfter.RecordID)
}

func TestSyncFull_RebuildsSuggestTerms(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	_, err := f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	terms, err := f.suggestions.Terms(ctx)
	require.NoError(t, err)
	require.Contains(t, terms, "Elasticsearch Guide")

	f.source.Remove("p2")
	report, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	terms, err = f.suggestions.Terms(ctx)
	require.NoError(t, err)
	assert.NotContains(t, terms, "Elasticsearch Guide")
	assert.NotContains(t, terms, "Elasticsearch")
	assert.Contains(t, terms, "Django Basics")
	assert.Contains(t, terms, "Django Elasticsearch Integration")
}

func TestSyncFull_KeepsSuggestTermsWhenRunHasFailures(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	_, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)

	broken := post("p2", "  ", "Body.", 30)
	f.source.Put(broken)
	report, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)

	terms, err := f.suggestions.Terms(ctx)
	require.NoError(t, err)
	assert.Contains(t, terms, "Elasticsearch Guide")
}

func TestSyncFull_RegistersSynonymsOnce(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)
	f.usecase.deps.BaseSynonyms = map[string][]string{"es": {"elasticsearch"}}
	f.usecase.deps.TagSynonyms = func(tags []string) map[string][]string {
		return map[string][]string{"django": {"web framework"}}
	}

	_, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	_, err = f.usecase.SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.index.synonymCalls)
}

func TestSync_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	report, err := f.usecase.WithDryRun(true).SyncIncrementalFromStore(ctx)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Upserted)
	assert.Equal(t, 0, f.index.mutations())
	assert.Empty(t, f.purger.classes)

	stored, err := f.cursors.Load(ctx, "posts")
	require.NoError(t, err)
	assert.True(t, stored.IsZero())

	report, err = f.usecase.WithDryRun(true).SyncFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Upserted)
	assert.Equal(t, 0, f.index.mutations())
}

func TestSyncRecords(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)
	_, err := f.usecase.SyncFull(ctx)
	require.NoError(t, err)

	f.source.Put(post("p1", "Django Basics Updated", "Body.", 40, "django"))
	f.source.Remove("p3")

	report, err := f.usecase.SyncRecords(ctx, []string{"p1", "p3", "p1"})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncModeRecords, report.Mode)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 1, report.Deleted)

	doc, err := f.index.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Django Basics Updated", doc.Title)
	_, err = f.index.Get(ctx, "p3")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := f.cursors.Load(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, "p3", stored.RecordID)
}

func TestSyncStatus(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(SyncOptions{}, threePosts()...)

	status, err := f.usecase.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, status.SourceCount)
	assert.EqualValues(t, 0, status.IndexCount)
	assert.False(t, status.InSync)

	_, err = f.usecase.SyncIncrementalFromStore(ctx)
	require.NoError(t, err)

	status, err = f.usecase.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.InSync)
	assert.Equal(t, "p3", status.Cursor.RecordID)
}
