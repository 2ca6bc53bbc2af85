package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Assignment describes a student attachment request for a queue item.
type Assignment struct {
	StudentID   string
	StudentName string
	// Auto marks the assignment as made by the identification stage.
	// Manual assignments clear the flag.
	Auto bool
}

// AssignStudent attaches a student to an item while holding the
// one-primary-per-student invariant: if a different primary item already
// holds the student, the call fails with ErrDuplicateAssignment and no
// mutation is applied. An empty StudentID clears the assignment.
func (s *Store) AssignStudent(ctx context.Context, id int64, assignment Assignment) error {
	ctx = ensureContext(ctx)
	studentID := strings.TrimSpace(assignment.StudentID)
	studentName := strings.TrimSpace(assignment.StudentName)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin assign tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var pageType string
		err = tx.QueryRowContext(ctx, `SELECT page_type FROM queue_items WHERE id = ?`, id).Scan(&pageType)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load item: %w", err)
		}

		if studentID != "" {
			var holder int64
			err = tx.QueryRowContext(
				ctx,
				`SELECT id FROM queue_items WHERE student_id = ? AND page_type = ? AND id != ? LIMIT 1`,
				studentID, PagePrimary, id,
			).Scan(&holder)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				// student is free to claim
			case err != nil:
				return fmt.Errorf("check assignment: %w", err)
			default:
				return fmt.Errorf("%w: student %s is held by item %d", ErrDuplicateAssignment, studentID, holder)
			}
		}

		auto := assignment.Auto && studentID != ""
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items SET student_id = ?, student_name = ?, auto_assigned = ?, updated_at = ? WHERE id = ?`,
			nullableString(studentID),
			nullableString(studentName),
			boolToInt(auto),
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
		); err != nil {
			return fmt.Errorf("assign student: %w", err)
		}
		return tx.Commit()
	})
}
