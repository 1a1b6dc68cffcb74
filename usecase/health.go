package usecase

import (
	"context"
	"time"

	"post-search/logger"
	"post-search/port"
)

const defaultProbeTimeout = 2 * time.Second

// HealthStatus is the result of probing the index and the source store.
type HealthStatus struct {
	Index  bool `json:"index"`
	Source bool `json:"source"`
}

func (h HealthStatus) OK() bool {
	return h.Index && h.Source
}

type HealthUsecase struct {
	index   port.SearchIndex
	source  port.SourceStore
	timeout time.Duration
}

func NewHealthUsecase(index port.SearchIndex, source port.SourceStore, timeout time.Duration) *HealthUsecase {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthUsecase{index: index, source: source, timeout: timeout}
}

// IndexHealthy probes the search index connection.
func (u *HealthUsecase) IndexHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	return u.index.Healthy(ctx)
}

func (u *HealthUsecase) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Index: u.IndexHealthy(ctx)}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := u.source.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("source store probe failed", "error", err)
	} else {
		status.Source = true
	}
	return status
}
