package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Link merges a page into a primary submission. The continuation forest stays
// at depth one: the parent must be a primary item, the child must not carry
// continuation pages of its own, and a child already linked to a different
// primary is rejected. Linking discards the child's analysis state and
// student assignment; the page is represented solely through its primary from
// here on. Re-linking to the same primary is a no-op.
func (s *Store) Link(ctx context.Context, continuationID, primaryID int64) error {
	ctx = ensureContext(ctx)
	if continuationID == primaryID {
		return fmt.Errorf("%w: cannot link item %d to itself", ErrInvalidLink, continuationID)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin link tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var parentType string
		err = tx.QueryRowContext(ctx, `SELECT page_type FROM queue_items WHERE id = ?`, primaryID).Scan(&parentType)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: primary item %d", ErrNotFound, primaryID)
		}
		if err != nil {
			return fmt.Errorf("load primary: %w", err)
		}
		if PageType(parentType) == PageContinuation {
			return fmt.Errorf("%w: item %d is itself a continuation page", ErrInvalidLink, primaryID)
		}

		var (
			childType   string
			childParent sql.NullInt64
		)
		err = tx.QueryRowContext(ctx, `SELECT page_type, continuation_of FROM queue_items WHERE id = ?`, continuationID).
			Scan(&childType, &childParent)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: continuation item %d", ErrNotFound, continuationID)
		}
		if err != nil {
			return fmt.Errorf("load continuation: %w", err)
		}
		if childParent.Valid {
			if childParent.Int64 == primaryID {
				return tx.Commit()
			}
			return fmt.Errorf("%w: item %d is already linked to item %d", ErrInvalidLink, continuationID, childParent.Int64)
		}

		var grandchildren int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items WHERE continuation_of = ?`, continuationID).
			Scan(&grandchildren); err != nil {
			return fmt.Errorf("count child pages: %w", err)
		}
		if grandchildren > 0 {
			return fmt.Errorf("%w: item %d has linked pages of its own, unlink them first", ErrInvalidLink, continuationID)
		}

		var maxRank sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(page_rank) FROM queue_items WHERE continuation_of = ?`, primaryID).
			Scan(&maxRank); err != nil {
			return fmt.Errorf("next page rank: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items
             SET page_type = ?, continuation_of = ?, page_rank = ?, status = ?,
                 result_json = NULL, error_message = NULL, student_id = NULL,
                 student_name = NULL, auto_assigned = 0, last_heartbeat = NULL,
                 updated_at = ?
             WHERE id = ?`,
			PageContinuation,
			primaryID,
			maxRank.Int64+1,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			continuationID,
		); err != nil {
			return fmt.Errorf("link continuation: %w", err)
		}
		return tx.Commit()
	})
}

// Unlink detaches a continuation page and makes it independently processable
// again: page type returns to primary and status resets to pending.
func (s *Store) Unlink(ctx context.Context, continuationID int64) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin unlink tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var parent sql.NullInt64
		err = tx.QueryRowContext(ctx, `SELECT continuation_of FROM queue_items WHERE id = ?`, continuationID).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: item %d", ErrNotFound, continuationID)
		}
		if err != nil {
			return fmt.Errorf("load continuation: %w", err)
		}
		if !parent.Valid {
			return fmt.Errorf("%w: item %d", ErrNotLinked, continuationID)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items
             SET page_type = ?, continuation_of = NULL, page_rank = 0,
                 status = ?, updated_at = ?
             WHERE id = ?`,
			PagePrimary,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			continuationID,
		); err != nil {
			return fmt.Errorf("unlink continuation: %w", err)
		}
		return tx.Commit()
	})
}
