// Package searchlog records executed searches off the request path.
package searchlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"post-search/domain"
	"post-search/port"
	appOtel "post-search/utils/otel"
)

const (
	DefaultBufferSize    = 1024
	DefaultBatchSize     = 50
	DefaultFlushInterval = time.Second
	writeTimeout         = 5 * time.Second
)

// Config sizes the Recorder.
type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:    DefaultBufferSize,
		BatchSize:     DefaultBatchSize,
		FlushInterval: DefaultFlushInterval,
	}
}

// Recorder is a fire-and-forget port.SearchLogSink. Entries go through a
// bounded buffer to a single writer that appends them in batches.
type Recorder struct {
	repo   port.SearchLogRepository
	cfg    Config
	logger *slog.Logger

	entries chan domain.SearchLogEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ port.SearchLogSink = (*Recorder)(nil)

// NewRecorder starts the writer goroutine. Call Close to stop it.
func NewRecorder(repo port.SearchLogRepository, cfg Config, logger *slog.Logger) *Recorder {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		entries: make(chan domain.SearchLogEntry, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an entry. It never blocks; a full buffer drops the entry.
func (r *Recorder) Record(entry domain.SearchLogEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	select {
	case r.entries <- entry:
	default:
		appOtel.Metrics.RecordLogDropped(context.Background())
		r.logger.Warn("search log buffer full, dropping entry", "query", entry.Query)
	}
}

// Close stops accepting entries, writes what is buffered and waits for the writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.SearchLogEntry, 0, r.cfg.BatchSize)
	for {
		select {
		case entry, ok := <-r.entries:
			if !ok {
				r.write(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= r.cfg.BatchSize {
				r.write(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.write(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) write(batch []domain.SearchLogEntry) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.AppendBatch(ctx, batch); err != nil {
		r.logger.Error("failed to write search log batch",
			"entries", len(batch),
			"error", err,
		)
	}
}
