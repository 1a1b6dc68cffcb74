package rest

import (
	"time"

	"post-search/domain"
)

type CursorResponse struct {
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	RecordID  string     `json:"record_id,omitempty"`
}

type FailureResponse struct {
	RecordID string `json:"record_id"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

type ReportResponse struct {
	RunID        string            `json:"run_id"`
	Mode         string            `json:"mode"`
	Source       string            `json:"source"`
	DryRun       bool              `json:"dry_run"`
	Status       string            `json:"status"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	DurationMS   int64             `json:"duration_ms"`
	Processed    int               `json:"processed"`
	Upserted     int               `json:"upserted"`
	Deleted      int               `json:"deleted"`
	Skipped      int               `json:"skipped"`
	Unchanged    int               `json:"unchanged"`
	SuccessRate  float64           `json:"success_rate"`
	Failures     []FailureResponse `json:"failures"`
	CursorBefore CursorResponse    `json:"cursor_before"`
	CursorAfter  CursorResponse    `json:"cursor_after"`
	Error        string            `json:"error,omitempty"`
}

func newReportResponse(r *domain.SyncReport, runErr error) ReportResponse {
	failures := make([]FailureResponse, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = FailureResponse{RecordID: f.RecordID, Stage: f.Stage, Error: f.Err, Attempts: f.Attempts}
	}
	resp := ReportResponse{
		RunID:        r.RunID,
		Mode:         string(r.Mode),
		Source:       r.Source,
		DryRun:       r.DryRun,
		Status:       string(r.Status),
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		DurationMS:   r.Duration().Milliseconds(),
		Processed:    r.Processed,
		Upserted:     r.Upserted,
		Deleted:      r.Deleted,
		Skipped:      r.Skipped,
		Unchanged:    r.Unchanged,
		SuccessRate:  r.SuccessRate(),
		Failures:     failures,
		CursorBefore: newCursorResponse(r.CursorBefore),
		CursorAfter:  newCursorResponse(r.CursorAfter),
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	return resp
}

func newCursorResponse(c domain.SyncCursor) CursorResponse {
	if c.UpdatedAt.IsZero() {
		return CursorResponse{RecordID: c.RecordID}
	}
	t := c.UpdatedAt
	return CursorResponse{UpdatedAt: &t, RecordID: c.RecordID}
}

type StatusResponse struct {
	Source      string         `json:"source"`
	SourceCount int64          `json:"source_count"`
	IndexCount  int64          `json:"index_count"`
	InSync      bool           `json:"in_sync"`
	Cursor      CursorResponse `json:"cursor"`
	CheckedAt   time.Time      `json:"checked_at"`
}

func newStatusResponse(s *domain.SyncStatus) StatusResponse {
	return StatusResponse{
		Source:      s.Source,
		SourceCount: s.SourceCount,
		IndexCount:  s.IndexCount,
		InSync:      s.InSync,
		Cursor:      newCursorResponse(s.Cursor),
		CheckedAt:   s.CheckedAt,
	}
}
