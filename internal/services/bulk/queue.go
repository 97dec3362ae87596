// Package bulk executes "apply one action to N targets" operations on a
// bounded worker pool. Submission persists the operation and returns
// immediately; callers poll the record for progress. The record in the job
// store is the status projection, so progress survives restarts up to the
// last processed item.
package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"content-panel/internal/collab"
	"content-panel/internal/models"
	"content-panel/internal/store"
)

var (
	ErrEmptyTargets = errors.New("target list is empty")
	ErrUnknownKind  = errors.New("unknown bulk operation kind")
	ErrQueueFull    = errors.New("bulk queue is full")
)

type Config struct {
	Workers     int
	QueueSize   int
	ItemDelay   time.Duration // minimum spacing between remote calls in one operation
	CallTimeout time.Duration
}

type Queue struct {
	cfg       Config
	store     *store.Store
	publisher collab.Publisher
	log       zerolog.Logger

	jobs chan string // operation IDs
	wg   sync.WaitGroup
}

func NewQueue(cfg Config, st *store.Store, publisher collab.Publisher, log zerolog.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Queue{
		cfg:       cfg,
		store:     st,
		publisher: publisher,
		log:       log.With().Str("component", "bulk").Logger(),
		jobs:      make(chan string, cfg.QueueSize),
	}
}

// Start launches the worker pool and re-enqueues operations the last
// process left unfinished: pending ones that were never picked up, and
// processing ones interrupted mid-run, which resume from their persisted
// progress.
func (q *Queue) Start(ctx context.Context) error {
	resumable, err := q.store.ResumableBulkOperations()
	if err != nil {
		return err
	}
	for _, op := range resumable {
		select {
		case q.jobs <- op.ID:
		default:
			q.log.Warn().Str("operation_id", op.ID).Msg("queue full during recovery, operation stays unclaimed")
		}
	}
	if len(resumable) > 0 {
		q.log.Info().Int("operations", len(resumable)).Msg("re-enqueued unfinished bulk operations")
	}

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return nil
}

// Wait blocks until all workers have exited after context cancellation.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// SubmitRequest is the validated input for one bulk operation.
type SubmitRequest struct {
	UserID     uint
	SiteID     uint
	Kind       models.BulkOperationKind
	TargetType string
	TargetIDs  []int64
	Payload    json.RawMessage
}

// Submit validates, persists the operation as pending and enqueues it.
// Returns the operation ID immediately; execution happens on a worker.
func (q *Queue) Submit(req SubmitRequest) (string, error) {
	if len(req.TargetIDs) == 0 {
		return "", ErrEmptyTargets
	}
	switch req.Kind {
	case models.BulkKindPublish, models.BulkKindUnpublish, models.BulkKindDelete, models.BulkKindUpdateMetadata:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if req.TargetType == "" {
		req.TargetType = "post"
	}
	if req.Kind == models.BulkKindUpdateMetadata {
		var meta collab.Metadata
		if err := json.Unmarshal(req.Payload, &meta); err != nil {
			return "", fmt.Errorf("invalid update-metadata payload: %w", err)
		}
	}

	op := &models.BulkOperation{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		SiteID:     req.SiteID,
		Kind:       req.Kind,
		TargetType: req.TargetType,
		TargetIDs:  req.TargetIDs,
		Payload:    []byte(req.Payload),
		Status:     models.BulkStatusPending,
		TotalItems: len(req.TargetIDs),
	}
	if err := q.store.CreateBulkOperation(op); err != nil {
		return "", err
	}

	select {
	case q.jobs <- op.ID:
	default:
		// Leave the record pending; startup recovery or a retry submit can
		// still pick it up, but tell the caller the engine is saturated.
		return op.ID, ErrQueueFull
	}

	q.log.Info().Str("operation_id", op.ID).Str("kind", string(op.Kind)).
		Int("targets", op.TotalItems).Msg("bulk operation submitted")
	return op.ID, nil
}

// Status returns the current projection of the operation.
func (q *Queue) Status(id string) (*models.BulkOperation, error) {
	return q.store.GetBulkOperation(id)
}

// Cancel requests cancellation. A pending operation cancels outright; a
// processing one finishes its in-flight item and stops before the next.
func (q *Queue) Cancel(id string, userID uint) error {
	return q.store.RequestBulkCancel(id, userID)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		// fast-exit so shutdown wins over queued work
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case id := <-q.jobs:
			q.process(ctx, id)
		}
	}
}
