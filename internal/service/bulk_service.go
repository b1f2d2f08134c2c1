package service

import (
	"context"
	"sync"

	"github.com/bookline/bookline/internal/booking"
	"github.com/bookline/bookline/internal/lock"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// bulkWorkers bounds the per-batch fan-out.
const bulkWorkers = 4

// BulkService applies one action across many requests of a business, one
// outcome row per id, never aborting the batch on a single failure.
type BulkService struct {
	requests RequestStore
	bookings *BookingService
	locker   lock.Locker
	logger   *zap.Logger
}

func NewBulkService(requests RequestStore, bookings *BookingService, locker lock.Locker, logger *zap.Logger) *BulkService {
	return &BulkService{
		requests: requests,
		bookings: bookings,
		locker:   locker,
		logger:   logger,
	}
}

type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type FailedItem struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkOutcome reports per-item results. Skipped means the action was a no-op
// for that item; Failed means it was attempted and rejected or errored.
type BulkOutcome struct {
	Succeeded []string      `json:"succeeded"`
	Skipped   []SkippedItem `json:"skipped"`
	Failed    []FailedItem  `json:"failed"`
}

// BulkApplyAction runs the action over the ids. A second call for the same
// business while one is in flight is refused with ErrBatchInFlight, not
// queued. Ids no longer visible to the business are dropped silently.
// Cancelling ctx stops scheduling further items; committed transitions stay.
func (s *BulkService) BulkApplyAction(ctx context.Context, businessID string, requestIDs []string, action booking.Action, input ActionInput) (*BulkOutcome, error) {
	release, ok, err := s.locker.TryAcquire(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchInFlight
	}
	defer release()

	// Re-resolve the working set: the caller's selection may have raced a
	// filter change upstream. Missing ids are dropped, not failed.
	visible, err := s.requests.ListVisible(ctx, businessID, requestIDs)
	if err != nil {
		return nil, err
	}

	type itemResult struct {
		id      string
		skipped string // reason, when non-empty
		err     error
	}

	results := make([]itemResult, len(visible))
	target := booking.TargetStatus(action)

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(bulkWorkers)

	for i, req := range visible {
		if ctx.Err() != nil {
			// Cancellation: stop scheduling, keep what already committed.
			results = results[:i]
			break
		}
		i, req := i, req

		// No-op detection: the request already sits where the action leads
		// and the edge is not legal from there (e.g. decline on DECLINED).
		if _, legal := booking.Target(req.Status, action); !legal && req.Status == target {
			results[i] = itemResult{id: req.ID, skipped: "already " + string(req.Status)}
			continue
		}

		g.Go(func() error {
			_, err := s.bookings.ApplyAction(ctx, req.ID, action, input, req.Status)
			mu.Lock()
			results[i] = itemResult{id: req.ID, err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	outcome := &BulkOutcome{}
	for _, r := range results {
		switch {
		case r.id == "":
			// Slot never scheduled (canceled mid-batch).
		case r.skipped != "":
			outcome.Skipped = append(outcome.Skipped, SkippedItem{ID: r.id, Reason: r.skipped})
		case r.err != nil:
			outcome.Failed = append(outcome.Failed, FailedItem{ID: r.id, Error: booking.Code(r.err)})
		default:
			outcome.Succeeded = append(outcome.Succeeded, r.id)
		}
	}

	s.logger.Info("bulk action finished",
		zap.String("business_id", businessID),
		zap.String("action", string(action)),
		zap.Int("succeeded", len(outcome.Succeeded)),
		zap.Int("skipped", len(outcome.Skipped)),
		zap.Int("failed", len(outcome.Failed)),
	)

	return outcome, nil
}
