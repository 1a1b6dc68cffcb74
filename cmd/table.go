package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"post-search/domain"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// newTable creates a borderless, left-aligned table.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := newTable(w)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// renderReport prints a sync report, followed by its failures when there are any.
func renderReport(w io.Writer, r *domain.SyncReport) error {
	rows := [][]string{
		{"run id", r.RunID},
		{"mode", string(r.Mode)},
		{"source", r.Source},
		{"dry run", strconv.FormatBool(r.DryRun)},
		{"status", string(r.Status)},
		{"processed", strconv.Itoa(r.Processed)},
		{"upserted", strconv.Itoa(r.Upserted)},
		{"deleted", strconv.Itoa(r.Deleted)},
		{"skipped", strconv.Itoa(r.Skipped)},
		{"unchanged", strconv.Itoa(r.Unchanged)},
		{"failures", strconv.Itoa(len(r.Failures))},
		{"success rate", fmt.Sprintf("%.1f%%", r.SuccessRate())},
		{"duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
		{"cursor before", formatCursor(r.CursorBefore)},
		{"cursor after", formatCursor(r.CursorAfter)},
	}
	if err := renderTable(w, []string{"field", "value"}, rows); err != nil {
		return err
	}
	if len(r.Failures) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	failures := make([][]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, []string{f.RecordID, f.Stage, strconv.Itoa(f.Attempts), f.Err})
	}
	return renderTable(w, []string{"record", "stage", "attempts", "error"}, failures)
}

func renderStatus(w io.Writer, s *domain.SyncStatus, indexUp, sourceUp bool) error {
	rows := [][]string{
		{"source", s.Source},
		{"source count", strconv.FormatInt(s.SourceCount, 10)},
		{"index count", strconv.FormatInt(s.IndexCount, 10)},
		{"in sync", strconv.FormatBool(s.InSync)},
		{"cursor", formatCursor(s.Cursor)},
		{"index healthy", strconv.FormatBool(indexUp)},
		{"source healthy", strconv.FormatBool(sourceUp)},
		{"checked at", s.CheckedAt.UTC().Format(time.RFC3339)},
	}
	return renderTable(w, []string{"field", "value"}, rows)
}

func formatCursor(c domain.SyncCursor) string {
	if c.IsZero() {
		return "-"
	}
	return c.UpdatedAt.UTC().Format(time.RFC3339Nano) + " / " + c.RecordID
}
