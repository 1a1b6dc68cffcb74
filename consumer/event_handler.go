package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"post-search/domain"
)

const (
	EventPostUpserted  = "PostUpserted"
	EventPostDeleted   = "PostDeleted"
	EventSyncRequested = "SyncRequested"
)

// PostEventPayload is the payload of PostUpserted and PostDeleted.
type PostEventPayload struct {
	PostID string `json:"post_id"`
}

// SyncRequestedPayload asks for a sync. Listed post ids are re-synced directly;
// without ids the mode selects an incremental or a full run.
type SyncRequestedPayload struct {
	Mode    string   `json:"mode"`
	PostIDs []string `json:"post_ids"`
}

// Syncer is the part of the Synchronizer driven by events.
type Syncer interface {
	SyncRecords(ctx context.Context, ids []string) (*domain.SyncReport, error)
	SyncIncrementalFromStore(ctx context.Context) (*domain.SyncReport, error)
	SyncFull(ctx context.Context) (*domain.SyncReport, error)
}

// SyncEventHandler buffers post ids from events and applies them in batches.
// It is driven by a single consumer goroutine.
type SyncEventHandler struct {
	syncer        Syncer
	logger        *slog.Logger
	flushSize     int
	flushInterval time.Duration

	ids         []string
	messageIDs  []string
	first       time.Time
	full        bool
	incremental bool
}

func NewSyncEventHandler(syncer Syncer, flushSize int, flushInterval time.Duration, logger *slog.Logger) *SyncEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if flushSize <= 0 {
		flushSize = DefaultConfig().FlushSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultConfig().FlushInterval
	}
	return &SyncEventHandler{
		syncer:        syncer,
		logger:        logger,
		flushSize:     flushSize,
		flushInterval: flushInterval,
	}
}

// Add buffers an event. A malformed payload is returned as an error and the
// event is not buffered.
func (h *SyncEventHandler) Add(event Event, now time.Time) error {
	var ids []string
	switch event.EventType {
	case EventPostUpserted, EventPostDeleted:
		var p PostEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.EventType, err)
		}
		if p.PostID == "" {
			return fmt.Errorf("%s without post_id", event.EventType)
		}
		ids = []string{p.PostID}
	case EventSyncRequested:
		var p SyncRequestedPayload
		if len(event.Payload) > 0 {
			if err := json.Unmarshal(event.Payload, &p); err != nil {
				return fmt.Errorf("decode %s payload: %w", event.EventType, err)
			}
		}
		switch {
		case len(p.PostIDs) > 0:
			ids = p.PostIDs
		case p.Mode == string(domain.SyncModeFull):
			h.full = true
		default:
			h.incremental = true
		}
	default:
		h.logger.Warn("unknown event type, skipping",
			"event_type", event.EventType,
			"event_id", event.EventID,
		)
	}

	if !h.Pending() {
		h.first = now
	}
	h.ids = append(h.ids, ids...)
	h.messageIDs = append(h.messageIDs, event.MessageID)
	return nil
}

func (h *SyncEventHandler) Pending() bool {
	return len(h.messageIDs) > 0
}

// Ready reports whether the buffer should be flushed now.
func (h *SyncEventHandler) Ready(now time.Time) bool {
	if !h.Pending() {
		return false
	}
	return len(h.ids) >= h.flushSize || h.full || h.incremental || now.Sub(h.first) >= h.flushInterval
}

// Wait returns how long until the time-based flush is due.
func (h *SyncEventHandler) Wait(now time.Time) time.Duration {
	if !h.Pending() {
		return h.flushInterval
	}
	return max(h.flushInterval-now.Sub(h.first), time.Millisecond)
}

// Flush applies everything buffered and returns the stream message ids that can
// be acknowledged. On error nothing is acknowledged so the messages are
// delivered again.
func (h *SyncEventHandler) Flush(ctx context.Context) ([]string, error) {
	if !h.Pending() {
		return nil, nil
	}
	ids := slices.Compact(slices.Sorted(slices.Values(h.ids)))
	messageIDs, full, incremental := h.messageIDs, h.full, h.incremental
	h.ids, h.messageIDs, h.full, h.incremental = nil, nil, false, false

	var errs []error
	if len(ids) > 0 {
		report, err := h.syncer.SyncRecords(ctx, ids)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync %d records: %w", len(ids), err))
		} else {
			h.logger.Info("event batch synced",
				"posts", len(ids),
				"upserted", report.Upserted,
				"deleted", report.Deleted,
				"failures", len(report.Failures),
			)
		}
	}

	var run func(context.Context) (*domain.SyncReport, error)
	switch {
	case full:
		run = h.syncer.SyncFull
	case incremental:
		run = h.syncer.SyncIncrementalFromStore
	}
	if run != nil {
		_, err := run(ctx)
		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			h.logger.Info("requested sync skipped, another run is in progress")
		case err != nil:
			errs = append(errs, fmt.Errorf("requested sync: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return messageIDs, nil
}
