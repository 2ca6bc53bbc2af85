package queue

import "errors"

var (
	// ErrNotFound indicates the referenced queue item does not exist.
	ErrNotFound = errors.New("queue item not found")
	// ErrDuplicateAssignment indicates another primary item already holds the student.
	ErrDuplicateAssignment = errors.New("student already assigned to another submission")
	// ErrInvalidLink indicates a continuation link would break the forest invariant.
	ErrInvalidLink = errors.New("invalid continuation link")
	// ErrNotLinked indicates an unlink target is not a continuation page.
	ErrNotLinked = errors.New("item is not a continuation page")
	// ErrInvalidOperation indicates the operation is not allowed in the item's current state.
	ErrInvalidOperation = errors.New("operation not allowed in current item state")
)
