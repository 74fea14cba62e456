package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-wms/meridian-wms/internal/jobs"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// NewIdempotencyCleanupHandler prunes idempotency keys older than retention.
// Keys must outlive any realistic replay window; the default retention is 30
// days, configured through IDEMPOTENCY_RETENTION.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("idempotency_cleanup")
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("idempotency cleanup done", slog.Duration("retention", retention))
		return tracker.End(nil)
	}
}
