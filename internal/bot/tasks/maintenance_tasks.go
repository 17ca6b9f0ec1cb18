package tasks

import (
	"context"
	"fmt"
	"time"
)

// newThreadSweepTask trims every conversation thread to its length cap.
func newThreadSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "thread_sweep")

	return func(ctx context.Context) error {
		trimmed := deps.Threads.SweepAll()
		log.InfoContext(ctx, "Thread sweep completed", "threads_trimmed", trimmed)
		return nil
	}
}

// newStoreFlushTask writes pending messages that have not reached the save
// batch threshold yet.
func newStoreFlushTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "store_flush")

	return func(ctx context.Context) error {
		if err := deps.Saver.Flush(ctx); err != nil {
			log.ErrorContext(ctx, "Store flush failed", "error", err)
			return fmt.Errorf("store flush failed: %w", err)
		}
		log.DebugContext(ctx, "Store flush completed")
		return nil
	}
}

// newStorePruneTask drops messages older than the retention period and runs
// backend maintenance when the backend has one.
func newStorePruneTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "store_prune")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting store prune task...")
		startTime := time.Now()

		if retention := deps.Config.Storage.Retention; retention > 0 {
			cutoff := deps.Summary.Now().Add(-retention)
			if removed := deps.Store.Prune(cutoff); removed > 0 {
				log.InfoContext(ctx, "Pruned old messages", "removed", removed, "before", cutoff)
				deps.Saver.Save(ctx, true)
			}
		}

		if deps.Maintainer != nil {
			if err := deps.Maintainer.RunSQLMaintenance(ctx); err != nil {
				log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(startTime))
				return fmt.Errorf("sql maintenance failed: %w", err)
			}
		}

		log.InfoContext(ctx, "Store prune task completed successfully", "duration", time.Since(startTime))
		return nil
	}
}
