package domain

import "time"

// SyncCursor marks the last change synchronized for a source collection.
// Records are ordered by (UpdatedAt, RecordID); the zero cursor precedes everything.
type SyncCursor struct {
	Source    string
	UpdatedAt time.Time
	RecordID  string
}

func (c SyncCursor) IsZero() bool {
	return c.UpdatedAt.IsZero() && c.RecordID == ""
}

// Before reports whether c sorts strictly before other.
func (c SyncCursor) Before(other SyncCursor) bool {
	if c.UpdatedAt.Equal(other.UpdatedAt) {
		return c.RecordID < other.RecordID
	}
	return c.UpdatedAt.Before(other.UpdatedAt)
}

// Advance returns the later of c and candidate, so a cursor never moves backwards.
func (c SyncCursor) Advance(candidate SyncCursor) SyncCursor {
	if c.Before(candidate) {
		candidate.Source = c.Source
		return candidate
	}
	return c
}

type SyncMode string

const (
	SyncModeIncremental SyncMode = "incremental"
	SyncModeFull        SyncMode = "full"
	SyncModeRecords     SyncMode = "records"
)

type SyncStatusCode string

const (
	SyncCompleted SyncStatusCode = "completed"
	SyncPartial   SyncStatusCode = "partial"
	SyncFailed    SyncStatusCode = "failed"
)

// Failure stages.
const (
	StageMap    = "map"
	StageUpsert = "upsert"
	StageDelete = "delete"
)

// SyncFailure records one item that could not be applied to the index.
type SyncFailure struct {
	RecordID string
	Stage    string
	Err      string
	Attempts int
}

// SyncReport summarizes one Synchronizer run.
type SyncReport struct {
	RunID        string
	Mode         SyncMode
	Source       string
	DryRun       bool
	StartedAt    time.Time
	FinishedAt   time.Time
	Processed    int
	Upserted     int
	Deleted      int
	Skipped      int
	Unchanged    int
	Failures     []SyncFailure
	CursorBefore SyncCursor
	CursorAfter  SyncCursor
	Status       SyncStatusCode
}

func (r *SyncReport) AddFailure(id, stage string, err error, attempts int) {
	r.Failures = append(r.Failures, SyncFailure{RecordID: id, Stage: stage, Err: err.Error(), Attempts: attempts})
}

// HasWriteFailures reports whether any index write failed. Mapping skips do not count.
func (r *SyncReport) HasWriteFailures() bool {
	for _, f := range r.Failures {
		if f.Stage != StageMap {
			return true
		}
	}
	return false
}

// Mutations is the number of index writes the run applied (or would apply on a dry run).
func (r *SyncReport) Mutations() int {
	return r.Upserted + r.Deleted
}

// SuccessRate is the percentage of processed records that were not failures.
func (r *SyncReport) SuccessRate() float64 {
	if r.Processed == 0 {
		return 100
	}
	ok := r.Processed - len(r.Failures)
	if ok < 0 {
		ok = 0
	}
	return float64(ok) / float64(r.Processed) * 100
}

// Finish stamps the end time and derives the run status.
func (r *SyncReport) Finish(now time.Time) {
	r.FinishedAt = now
	switch {
	case len(r.Failures) == 0:
		r.Status = SyncCompleted
	case len(r.Failures) < r.Processed:
		r.Status = SyncPartial
	default:
		r.Status = SyncFailed
	}
}

func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncStatus compares source and index state.
type SyncStatus struct {
	Source      string
	SourceCount int64
	IndexCount  int64
	Cursor      SyncCursor
	InSync      bool
	CheckedAt   time.Time
}
