package bootstrap

import (
	"context"
	"errors"
	"time"

	"post-search/domain"
	"post-search/logger"

	"github.com/cenkalti/backoff/v5"
)

type incrementalSyncer interface {
	SyncIncrementalFromStore(ctx context.Context) (*domain.SyncReport, error)
}

type popularityRecomputer interface {
	RecomputePopularity(ctx context.Context) (int, error)
}

// newRetryBackoff creates an exponential backoff policy for sync loop retries.
func newRetryBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = 5 * time.Minute
	bo.Multiplier = 2
	return bo
}

func runSyncLoop(ctx context.Context, syncer incrementalSyncer, interval time.Duration) {
	syncLoop(ctx, syncer, interval, newRetryBackoff())
}

// syncLoop runs an incremental sync from the stored cursor every interval. A
// failed run is retried with exponential backoff; a run skipped because another
// replica holds the lease waits for the next interval.
func syncLoop(ctx context.Context, syncer incrementalSyncer, interval time.Duration, bo backoff.BackOff) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("sync loop panic", "err", r)
		}
	}()

	for {
		wait := interval
		report, err := syncer.SyncIncrementalFromStore(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, domain.ErrSyncInProgress):
			logger.Logger.Debug("incremental sync skipped, lease held elsewhere")
		case err != nil:
			wait = bo.NextBackOff()
			logger.Logger.Error("incremental sync error, retrying", "err", err, "retry_in", wait)
		default:
			bo.Reset()
			if report != nil && report.Processed == 0 {
				logger.Logger.Debug("no source changes")
			}
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// runPopularityLoop rebuilds suggestion popularity from the search log every interval.
func runPopularityLoop(ctx context.Context, popular popularityRecomputer, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("popularity loop panic", "err", r)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := popular.RecomputePopularity(ctx); err != nil && ctx.Err() == nil {
				logger.Logger.Error("popularity recompute failed", "err", err)
			}
		}
	}
}
