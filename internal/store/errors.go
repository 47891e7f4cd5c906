package store

import "errors"

var (
	// ErrNotFound reports a missing row inside a transaction or mutation.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentModification reports that another writer changed the row
	// first or the database stayed locked; the caller may retry.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrInvalidBillableState reports a billing state change outside
	// pending -> invoiced -> paid.
	ErrInvalidBillableState = errors.New("invalid billable state change")
)
