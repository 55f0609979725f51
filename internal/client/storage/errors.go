package storage

import "errors"

// Common client storage errors
var (
	// ErrEntryNotFound indicates that entity record was not found
	ErrEntryNotFound = errors.New("entity record not found")

	// ErrOperationNotFound indicates that queued operation was not found
	ErrOperationNotFound = errors.New("queued operation not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
