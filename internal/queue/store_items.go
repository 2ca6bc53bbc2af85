package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewScan inserts a new item for a scanned image awaiting processing.
func (s *Store) NewScan(ctx context.Context, imageRef string) (*Item, error) {
	imageRef = strings.TrimSpace(imageRef)
	if imageRef == "" {
		return nil, fmt.Errorf("%w: image ref is required", ErrInvalidOperation)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            image_ref, status, page_type, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?)`,
		imageRef,
		StatusPending,
		PagePrimary,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
//
// Update writes the full row and does not re-verify domain invariants; use
// AssignStudent, Link, and Unlink for mutations that must hold them.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items
         SET image_ref = ?, status = ?, student_id = ?, student_name = ?,
             auto_assigned = ?, identification_json = ?, page_type = ?,
             continuation_of = ?, page_rank = ?, result_json = ?,
             error_message = ?, notes = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		item.ImageRef,
		item.Status,
		nullableString(item.StudentID),
		nullableString(item.StudentName),
		boolToInt(item.AutoAssigned),
		nullableString(item.IdentificationJSON),
		item.PageType,
		nullableID(item.ContinuationOf),
		item.PageRank,
		nullableString(item.ResultJSON),
		nullableString(item.ErrorMessage),
		nullableString(item.Notes),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(item.LastHeartbeat),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListPrimary returns primary items filtered by status set, in queue order.
func (s *Store) ListPrimary(ctx context.Context, statuses ...Status) ([]*Item, error) {
	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items WHERE page_type = ?`
	orderClause := ` ORDER BY id`
	args := []any{PagePrimary}

	query := baseQuery
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}

	rows, err := s.db.QueryContext(ctx, query+orderClause, args...)
	if err != nil {
		return nil, fmt.Errorf("list primary items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ContinuationPages returns the linked pages of a primary item in link order.
func (s *Store) ContinuationPages(ctx context.Context, primaryID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE continuation_of = ? ORDER BY page_rank, id`,
		primaryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list continuation pages: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetNotes updates the free-text teacher annotation on an item.
func (s *Store) SetNotes(ctx context.Context, id int64, notes string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET notes = ?, updated_at = ? WHERE id = ?`,
		nullableString(notes),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set notes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes an item. Only pending items may be removed, and a primary
// item with linked continuation pages must have them unlinked first.
func (s *Store) Remove(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin remove tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var status string
		err = tx.QueryRowContext(ctx, `SELECT status FROM queue_items WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}
		if Status(status) != StatusPending {
			return fmt.Errorf("%w: item %d is %s, only pending items can be removed", ErrInvalidOperation, id, status)
		}

		var children int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM queue_items WHERE continuation_of = ?`, id).Scan(&children); err != nil {
			return fmt.Errorf("count continuation pages: %w", err)
		}
		if children > 0 {
			return fmt.Errorf("%w: item %d has %d linked continuation pages, unlink them first", ErrInvalidOperation, id, children)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return tx.Commit()
	})
}

// ClearCompleted removes only completed items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
