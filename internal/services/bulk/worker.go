package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"content-panel/internal/collab"
	"content-panel/internal/models"
	"content-panel/internal/store"
)

// process runs one whole operation on the calling worker. Items execute in
// submitted order; every item's outcome is persisted before the next item
// starts. Item failures are normal: the operation still completes. Only a
// failure outside the per-item boundary (store unreachable, panic) fails
// the operation as a whole.
func (q *Queue) process(ctx context.Context, id string) {
	defer func() {
		if rec := recover(); rec != nil {
			q.log.Error().Str("operation_id", id).Interface("panic", rec).Msg("bulk operation panicked")
			q.fail(id, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := q.store.StartBulkOperation(id); err != nil {
		if errors.Is(err, store.ErrNotClaimed) {
			// Cancelled (or otherwise resolved) before a worker got to it.
			return
		}
		q.log.Error().Err(err).Str("operation_id", id).Msg("cannot start bulk operation")
		return
	}

	op, err := q.store.GetBulkOperation(id)
	if err != nil {
		q.fail(id, fmt.Sprintf("load operation: %v", err))
		return
	}
	site, err := q.store.GetSite(op.SiteID)
	if err != nil {
		q.fail(id, fmt.Sprintf("load site %d: %v", op.SiteID, err))
		return
	}

	start := time.Now()
	q.log.Info().Str("operation_id", id).Str("kind", string(op.Kind)).
		Int("total", op.TotalItems).Msg("bulk operation started")

	// One limiter per operation: the first item goes immediately, each
	// following item waits out the configured spacing.
	var limiter *rate.Limiter
	if q.cfg.ItemDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(q.cfg.ItemDelay), 1)
	}

	// Resumability is row-level: skip items already counted in a previous
	// process lifetime.
	for i := op.ProcessedItems; i < len(op.TargetIDs); i++ {
		cancelled, err := q.store.BulkCancelRequested(id)
		if err != nil {
			q.fail(id, fmt.Sprintf("read cancel flag: %v", err))
			return
		}
		if cancelled || ctx.Err() != nil {
			q.finish(id, models.BulkStatusCancelled, op, start)
			return
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				q.finish(id, models.BulkStatusCancelled, op, start)
				return
			}
		}

		targetID := op.TargetIDs[i]
		var itemErr *models.BulkItemError
		if err := q.applyItem(ctx, op, site, targetID); err != nil {
			itemErr = &models.BulkItemError{TargetID: targetID, Message: err.Error()}
			q.log.Warn().Str("operation_id", id).Int64("target_id", targetID).Err(err).Msg("bulk item failed")
		}

		updated, err := q.store.BumpBulkProgress(id, itemErr)
		if err != nil {
			q.fail(id, fmt.Sprintf("persist progress: %v", err))
			return
		}
		op = updated
	}

	// Partial failure is a normal terminal outcome: all items processed
	// means completed, whatever the per-item results were.
	q.finish(id, models.BulkStatusCompleted, op, start)
}

// applyItem dispatches one target to the publisher. This is the per-item
// failure boundary: any error returned here is recorded against the target
// and never aborts the remaining items.
func (q *Queue) applyItem(ctx context.Context, op *models.BulkOperation, site *models.Site, targetID int64) error {
	callCtx := ctx
	if q.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, q.cfg.CallTimeout)
		defer cancel()
	}

	switch op.Kind {
	case models.BulkKindPublish:
		return q.publisher.SetPostState(callCtx, site, targetID, "publish")
	case models.BulkKindUnpublish:
		return q.publisher.SetPostState(callCtx, site, targetID, "draft")
	case models.BulkKindDelete:
		return q.publisher.DeletePost(callCtx, site, targetID)
	case models.BulkKindUpdateMetadata:
		var meta collab.Metadata
		if err := json.Unmarshal(op.Payload, &meta); err != nil {
			return fmt.Errorf("decode metadata payload: %w", err)
		}
		return q.publisher.UpdatePostMetadata(callCtx, site, targetID, meta)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, op.Kind)
	}
}

func (q *Queue) finish(id string, status models.BulkOperationStatus, op *models.BulkOperation, start time.Time) {
	if err := q.store.FinishBulkOperation(id, status, ""); err != nil {
		q.log.Error().Err(err).Str("operation_id", id).Msg("cannot finalize bulk operation")
		return
	}
	evt := q.log.Info()
	if op.FailureCount > 0 {
		evt = q.log.Warn()
	}
	evt.Str("operation_id", id).Str("status", string(status)).
		Int("processed", op.ProcessedItems).Int("succeeded", op.SuccessCount).
		Int("failed", op.FailureCount).Dur("dur", time.Since(start)).
		Msg("bulk operation finished")
}

func (q *Queue) fail(id string, synthetic string) {
	if err := q.store.FinishBulkOperation(id, models.BulkStatusFailed, synthetic); err != nil {
		q.log.Error().Err(err).Str("operation_id", id).Msg("cannot mark bulk operation failed")
	}
}
