package storage

import "context"

//go:generate moq -out cursors_mock.go . CursorStorage

// CursorStorage defines interface for per-table pull cursors.
// A cursor is the last-seen remote timestamp (unix milliseconds);
// it advances only after a fully applied pull batch.
type CursorStorage interface {
	// SaveCursor saves the cursor for a table
	SaveCursor(ctx context.Context, table string, cursor int64) error

	// GetCursor retrieves the cursor for a table
	// Returns 0 if the table has never been pulled
	GetCursor(ctx context.Context, table string) (int64, error)
}
