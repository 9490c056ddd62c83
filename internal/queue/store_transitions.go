package queue

import (
	"context"
	"fmt"
	"time"
)

// Advance moves a job to the next status after validating the transition
// against the state machine. The optional apply callback mutates the item
// before it is persisted (progress fields, segment payload, output file).
// Advancing to the current status is an idempotent no-op that skips apply.
func (s *Store) Advance(ctx context.Context, id int64, next Status, apply func(*Item)) (*Item, error) {
	ctx = ensureContext(ctx)

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("advance: job %d not found", id)
	}
	if item.Status == next {
		return item, nil
	}
	if !TransitionAllowed(item.Status, next) {
		return nil, &TransitionError{JobID: id, From: item.Status, To: next}
	}

	if apply != nil {
		apply(item)
	}
	item.Status = next
	if next == StatusCompleted || next == StatusFailed {
		item.LastHeartbeat = nil
	}
	if err := s.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RequestStop flags a job so processing halts at the next safe checkpoint.
// Returns false when the job does not exist or is already terminal.
func (s *Store) RequestStop(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE queue_items SET stop_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("request stop: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// StopRequested reports whether a stop has been flagged for the job.
func (s *Store) StopRequested(ctx context.Context, id int64) (bool, error) {
	item, err := s.GetByID(ensureContext(ctx), id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	return item.StopRequested, nil
}

// ClearStopRequest resets the stop flag, typically when a job is re-queued.
func (s *Store) ClearStopRequest(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(
		ensureContext(ctx),
		`UPDATE queue_items SET stop_requested = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("clear stop request: %w", err)
	}
	return nil
}
