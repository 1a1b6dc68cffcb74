package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"post-search/domain"
	"post-search/logger"
	"post-search/mapper"
	"post-search/port"
	appOtel "post-search/utils/otel"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultSyncBatchSize = 200
	defaultMaxRetries    = 3
	defaultRetryInitial  = 200 * time.Millisecond
	maxRetryInterval     = 5 * time.Second
)

type SyncOptions struct {
	BatchSize  int
	MaxRetries int
	// RetryInitial is the first per-item backoff interval.
	RetryInitial time.Duration
	// PagesPerSecond throttles source reads; zero means unlimited.
	PagesPerSecond float64
	DryRun         bool
}

// CachePurger drops cached results after the index changed.
type CachePurger interface {
	Purge(ctx context.Context, classes ...domain.QueryClass)
}

// SyncDeps are the collaborators of the Synchronizer. Suggestions, Cache and the
// synonym fields are optional.
type SyncDeps struct {
	Source      port.SourceStore
	Index       port.SearchIndex
	Cursors     port.CursorStore
	Lease       port.Lease
	Mapper      *mapper.Mapper
	Suggestions port.SuggestionStore
	Cache       CachePurger
	// BaseSynonyms come from the analysis file.
	BaseSynonyms map[string][]string
	// TagSynonyms derives synonyms from the tags seen during a full sync.
	TagSynonyms func(tags []string) map[string][]string
}

type SyncUsecase struct {
	deps    SyncDeps
	opts    SyncOptions
	limiter *rate.Limiter
	now     func() time.Time

	synonymsHash string
}

func NewSyncUsecase(deps SyncDeps, opts SyncOptions) *SyncUsecase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSyncBatchSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	limit := rate.Inf
	if opts.PagesPerSecond > 0 {
		limit = rate.Limit(opts.PagesPerSecond)
	}
	return &SyncUsecase{
		deps:    deps,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// WithDryRun returns a copy that maps and counts without writing to the index,
// the cursor store or the suggestion store.
func (u *SyncUsecase) WithDryRun(dryRun bool) *SyncUsecase {
	cp := &SyncUsecase{
		deps:         u.deps,
		opts:         u.opts,
		limiter:      u.limiter,
		now:          u.now,
		synonymsHash: u.synonymsHash,
	}
	cp.opts.DryRun = dryRun
	return cp
}

func (u *SyncUsecase) leaseName() string {
	return "sync:" + u.deps.Source.Name()
}

func (u *SyncUsecase) newReport(mode domain.SyncMode) *domain.SyncReport {
	return &domain.SyncReport{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Source:    u.deps.Source.Name(),
		DryRun:    u.opts.DryRun,
		StartedAt: u.now(),
	}
}

// SyncIncremental applies every source change after since. The cursor store is
// not touched; CursorAfter carries the position a caller may persist.
func (u *SyncUsecase) SyncIncremental(ctx context.Context, since domain.SyncCursor) (*domain.SyncReport, error) {
	release, err := u.deps.Lease.Acquire(ctx, u.leaseName())
	if err != nil {
		return nil, err
	}
	defer release()

	return u.runIncremental(ctx, since)
}

// SyncIncrementalFromStore runs an incremental sync from the stored cursor and
// persists the cursor it reaches.
func (u *SyncUsecase) SyncIncrementalFromStore(ctx context.Context) (*domain.SyncReport, error) {
	release, err := u.deps.Lease.Acquire(ctx, u.leaseName())
	if err != nil {
		return nil, err
	}
	defer release()

	since, err := u.deps.Cursors.Load(ctx, u.deps.Source.Name())
	if err != nil {
		return nil, fmt.Errorf("load sync cursor: %w", err)
	}

	report, runErr := u.runIncremental(ctx, since)
	if report == nil {
		return nil, runErr
	}
	if !u.opts.DryRun && report.CursorBefore.Before(report.CursorAfter) {
		if err := u.deps.Cursors.Save(ctx, report.CursorAfter); err != nil {
			return report, errors.Join(runErr, fmt.Errorf("save sync cursor: %w", err))
		}
	}
	return report, runErr
}

func (u *SyncUsecase) runIncremental(ctx context.Context, since domain.SyncCursor) (*domain.SyncReport, error) {
	report := u.newReport(domain.SyncModeIncremental)
	since.Source = report.Source
	report.CursorBefore = since
	report.CursorAfter = since
	ctx = logger.WithSyncRun(ctx, report.RunID, report.Source)
	log := logger.FromContext(ctx)
	log.Info("incremental sync started", "since_updated_at", since.UpdatedAt, "since_id", since.RecordID, "dry_run", u.opts.DryRun)

	page := since
	reached := since
	var runErr error
	for {
		if err := u.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}
		records, err := u.deps.Source.ListChanged(ctx, page, u.opts.BatchSize)
		if err != nil {
			runErr = fmt.Errorf("list changed records: %w", err)
			break
		}
		if len(records) == 0 {
			break
		}
		report.Processed += len(records)

		var deletes []string
		live := make([]domain.SourceRecord, 0, len(records))
		for _, r := range records {
			if r.Deleted {
				deletes = append(deletes, r.ID)
				continue
			}
			live = append(live, r)
		}
		docs := u.mapRecords(ctx, live, report)

		if err := u.applyWrites(ctx, report, docs, deletes); err != nil {
			runErr = err
			break
		}

		page = records[len(records)-1].Marker(report.Source)
		reached = reached.Advance(page)
		if len(records) < u.opts.BatchSize {
			break
		}
	}

	if runErr == nil && !report.HasWriteFailures() {
		report.CursorAfter = reached
	}
	u.finish(ctx, report, runErr)
	return report, runErr
}

// SyncFull reconciles the whole source against the index. Documents whose
// checksum already matches are left alone, so a repeated run issues no writes.
func (u *SyncUsecase) SyncFull(ctx context.Context) (*domain.SyncReport, error) {
	release, err := u.deps.Lease.Acquire(ctx, u.leaseName())
	if err != nil {
		return nil, err
	}
	defer release()

	report := u.newReport(domain.SyncModeFull)
	ctx = logger.WithSyncRun(ctx, report.RunID, report.Source)
	log := logger.FromContext(ctx)

	before, err := u.deps.Cursors.Load(ctx, report.Source)
	if err != nil {
		return nil, fmt.Errorf("load sync cursor: %w", err)
	}
	report.CursorBefore = before
	report.CursorAfter = before

	indexed, err := u.deps.Index.Checksums(ctx)
	if err != nil {
		err = fmt.Errorf("load index checksums: %w", err)
		u.finish(ctx, report, err)
		return report, err
	}
	log.Info("full sync started", "indexed_documents", len(indexed), "dry_run", u.opts.DryRun)

	seen := make(map[string]struct{}, len(indexed))
	tagSet := make(map[string]struct{})
	var suggestTerms []string
	page := domain.SyncCursor{Source: report.Source}
	reached := before
	var runErr error
	for {
		if err := u.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}
		records, err := u.deps.Source.ListChanged(ctx, page, u.opts.BatchSize)
		if err != nil {
			runErr = fmt.Errorf("list source records: %w", err)
			break
		}
		if len(records) == 0 {
			break
		}
		report.Processed += len(records)

		var deletes []string
		live := make([]domain.SourceRecord, 0, len(records))
		for _, r := range records {
			// A record that fails to map keeps its previous document.
			seen[r.ID] = struct{}{}
			if r.Deleted {
				if _, ok := indexed[r.ID]; ok {
					deletes = append(deletes, r.ID)
				}
				continue
			}
			live = append(live, r)
		}

		var changed []domain.IndexDocument
		for _, doc := range u.mapRecords(ctx, live, report) {
			for _, tag := range doc.Tags {
				tagSet[tag] = struct{}{}
			}
			suggestTerms = append(suggestTerms, doc.SuggestTerms...)
			if sum, ok := indexed[doc.ID]; ok && sum == doc.Checksum {
				report.Unchanged++
				continue
			}
			changed = append(changed, doc)
		}

		if err := u.applyWrites(ctx, report, changed, deletes); err != nil {
			runErr = err
			break
		}

		page = records[len(records)-1].Marker(report.Source)
		reached = reached.Advance(page)
		if len(records) < u.opts.BatchSize {
			break
		}
	}

	if runErr == nil {
		var orphans []string
		for id := range indexed {
			if _, ok := seen[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		slices.Sort(orphans)
		for chunk := range slices.Chunk(orphans, u.opts.BatchSize) {
			if err := u.applyWrites(ctx, report, nil, chunk); err != nil {
				runErr = err
				break
			}
		}
	}

	if runErr == nil {
		u.registerSynonyms(ctx, tagSet)
		u.rebuildSuggestions(ctx, report, suggestTerms)
	}

	if runErr == nil && !report.HasWriteFailures() {
		report.CursorAfter = reached
		if !u.opts.DryRun && before.Before(reached) {
			if err := u.deps.Cursors.Save(ctx, reached); err != nil {
				runErr = fmt.Errorf("save sync cursor: %w", err)
			}
		}
	}

	u.finish(ctx, report, runErr)
	return report, runErr
}

// SyncRecords re-reads the given ids from the source and applies their current
// state. Ids missing from the source are removed from the index. The cursor is
// not touched. It holds the same lease as the other runs, so its writes never
// interleave with a full or incremental sync.
func (u *SyncUsecase) SyncRecords(ctx context.Context, ids []string) (*domain.SyncReport, error) {
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))
	if len(ids) == 0 {
		report := u.newReport(domain.SyncModeRecords)
		report.Finish(u.now())
		return report, nil
	}

	release, err := u.deps.Lease.Acquire(ctx, u.leaseName())
	if err != nil {
		return nil, err
	}
	defer release()

	report := u.newReport(domain.SyncModeRecords)
	ctx = logger.WithSyncRun(ctx, report.RunID, report.Source)

	records, err := u.deps.Source.GetByIDs(ctx, ids)
	if err != nil {
		err = fmt.Errorf("get source records: %w", err)
		u.finish(ctx, report, err)
		return report, err
	}
	report.Processed = len(ids)

	found := make(map[string]struct{}, len(records))
	var deletes []string
	live := make([]domain.SourceRecord, 0, len(records))
	for _, r := range records {
		found[r.ID] = struct{}{}
		if r.Deleted {
			deletes = append(deletes, r.ID)
			continue
		}
		live = append(live, r)
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			deletes = append(deletes, id)
		}
	}

	docs := u.mapRecords(ctx, live, report)
	runErr := u.applyWrites(ctx, report, docs, deletes)
	u.finish(ctx, report, runErr)
	return report, runErr
}

// Status compares the source and index document counts.
func (u *SyncUsecase) Status(ctx context.Context) (*domain.SyncStatus, error) {
	name := u.deps.Source.Name()
	sourceCount, err := u.deps.Source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count source records: %w", err)
	}
	indexCount, err := u.deps.Index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index documents: %w", err)
	}
	cursor, err := u.deps.Cursors.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load sync cursor: %w", err)
	}
	return &domain.SyncStatus{
		Source:      name,
		SourceCount: sourceCount,
		IndexCount:  indexCount,
		Cursor:      cursor,
		InSync:      sourceCount == indexCount,
		CheckedAt:   u.now(),
	}, nil
}

func (u *SyncUsecase) mapRecords(ctx context.Context, records []domain.SourceRecord, report *domain.SyncReport) []domain.IndexDocument {
	docs, mapErrs := u.deps.Mapper.MapBatch(records)
	for _, me := range mapErrs {
		report.Skipped++
		report.AddFailure(me.RecordID, domain.StageMap, me, 1)
		logger.FromContext(logger.WithPostID(ctx, me.RecordID)).Warn("skipping unmappable record", "error", me)
	}
	return docs
}

// applyWrites upserts docs and deletes ids. The batch call is tried first; on a
// non-fatal failure every item is retried on its own. Only an unavailable index
// is returned as an error.
func (u *SyncUsecase) applyWrites(ctx context.Context, report *domain.SyncReport, docs []domain.IndexDocument, deletes []string) error {
	if u.opts.DryRun {
		report.Upserted += len(docs)
		report.Deleted += len(deletes)
		return nil
	}

	if len(docs) > 0 {
		err := u.deps.Index.Upsert(ctx, docs)
		switch {
		case err == nil:
			report.Upserted += len(docs)
			u.addSuggestions(ctx, docs)
		case domain.IsUnavailable(err):
			return fmt.Errorf("upsert batch: %w", err)
		default:
			logger.FromContext(ctx).Warn("batch upsert failed, retrying per item", "documents", len(docs), "error", err)
			for _, doc := range docs {
				ok, err := u.retryItem(ctx, report, doc.ID, domain.StageUpsert, func(ctx context.Context) error {
					return u.deps.Index.Upsert(ctx, []domain.IndexDocument{doc})
				})
				if err != nil {
					return err
				}
				if ok {
					report.Upserted++
					u.addSuggestions(ctx, []domain.IndexDocument{doc})
				}
			}
		}
	}

	if len(deletes) > 0 {
		err := u.deps.Index.Delete(ctx, deletes)
		switch {
		case err == nil:
			report.Deleted += len(deletes)
		case domain.IsUnavailable(err):
			return fmt.Errorf("delete batch: %w", err)
		default:
			logger.FromContext(ctx).Warn("batch delete failed, retrying per item", "documents", len(deletes), "error", err)
			for _, id := range deletes {
				ok, err := u.retryItem(ctx, report, id, domain.StageDelete, func(ctx context.Context) error {
					return u.deps.Index.Delete(ctx, []string{id})
				})
				if err != nil {
					return err
				}
				if ok {
					report.Deleted++
				}
			}
		}
	}
	return nil
}

// retryItem runs op with exponential backoff. Exhausted retries are recorded as a
// failure of the item; an unavailable index stops retrying and is returned.
func (u *SyncUsecase) retryItem(ctx context.Context, report *domain.SyncReport, id, stage string, op func(context.Context) error) (bool, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.opts.RetryInitial
	bo.MaxInterval = maxRetryInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := op(ctx)
		if err != nil && domain.IsUnavailable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(u.opts.MaxRetries)+1))

	switch {
	case err == nil:
		return true, nil
	case domain.IsUnavailable(err):
		return false, fmt.Errorf("%s %s: %w", stage, id, err)
	}
	report.AddFailure(id, stage, err, attempts)
	logger.FromContext(logger.WithPostID(ctx, id)).Error("item failed after retries", "stage", stage, "attempts", attempts, "error", err)
	return false, nil
}

func (u *SyncUsecase) addSuggestions(ctx context.Context, docs []domain.IndexDocument) {
	if u.deps.Suggestions == nil {
		return
	}
	var terms []string
	for _, d := range docs {
		terms = append(terms, d.SuggestTerms...)
	}
	if len(terms) == 0 {
		return
	}
	if err := u.deps.Suggestions.AddTerms(ctx, terms); err != nil {
		logger.FromContext(ctx).Warn("failed to record suggest terms", "terms", len(terms), "error", err)
	}
}

// rebuildSuggestions replaces the suggestion term set with the terms of every
// live document, dropping the terms of removed posts. A run with failures keeps
// the current set, since a failed record's previous document is still indexed.
func (u *SyncUsecase) rebuildSuggestions(ctx context.Context, report *domain.SyncReport, terms []string) {
	if u.opts.DryRun || u.deps.Suggestions == nil {
		return
	}
	log := logger.FromContext(ctx)
	if len(report.Failures) > 0 {
		log.Info("suggest terms kept, run had failures", "failures", len(report.Failures))
		return
	}
	if err := u.deps.Suggestions.ReplaceTerms(ctx, terms); err != nil {
		log.Warn("failed to rebuild suggest terms", "terms", len(terms), "error", err)
	}
}

// registerSynonyms pushes the analysis-file synonyms plus the tag-derived ones.
// Nothing is sent when the set is unchanged since the last push.
func (u *SyncUsecase) registerSynonyms(ctx context.Context, tagSet map[string]struct{}) {
	if u.opts.DryRun {
		return
	}
	synonyms := make(map[string][]string, len(u.deps.BaseSynonyms))
	for k, v := range u.deps.BaseSynonyms {
		synonyms[k] = append([]string(nil), v...)
	}
	if u.deps.TagSynonyms != nil && len(tagSet) > 0 {
		tags := make([]string, 0, len(tagSet))
		for t := range tagSet {
			tags = append(tags, t)
		}
		slices.Sort(tags)
		for k, v := range u.deps.TagSynonyms(tags) {
			synonyms[k] = append(synonyms[k], v...)
		}
	}
	if len(synonyms) == 0 {
		return
	}

	raw, _ := json.Marshal(synonyms)
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])
	if hash == u.synonymsHash {
		return
	}
	if err := u.deps.Index.RegisterSynonyms(ctx, synonyms); err != nil {
		logger.FromContext(ctx).Warn("failed to register synonyms", "entries", len(synonyms), "error", err)
		return
	}
	u.synonymsHash = hash
}

func (u *SyncUsecase) finish(ctx context.Context, report *domain.SyncReport, runErr error) {
	report.Finish(u.now())
	if runErr != nil && report.Status == domain.SyncCompleted {
		report.Status = domain.SyncFailed
	}

	// Search results stay cached until their TTL expires, so a repeated query
	// returns the same envelope within the TTL.
	if !u.opts.DryRun && report.Mutations() > 0 && u.deps.Cache != nil {
		u.deps.Cache.Purge(ctx, domain.ClassSuggest, domain.ClassCategories)
	}
	appOtel.Metrics.RecordSync(ctx, report)

	log := logger.FromContext(ctx)
	attrs := []any{
		"mode", report.Mode,
		"status", report.Status,
		"processed", report.Processed,
		"upserted", report.Upserted,
		"deleted", report.Deleted,
		"skipped", report.Skipped,
		"unchanged", report.Unchanged,
		"failures", len(report.Failures),
		"duration_ms", report.Duration().Milliseconds(),
	}
	if runErr != nil {
		log.Error("sync aborted", append(attrs, "error", runErr)...)
		return
	}
	log.Info("sync finished", attrs...)
}
