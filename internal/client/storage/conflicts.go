package storage

import (
	"context"

	"github.com/iudanet/offsync/internal/models"
)

//go:generate moq -out conflicts_mock.go . ConflictStorage

// ConflictStorage defines interface for the conflict audit history.
// The history is append-only and capped; it has no behavioral effect
// on the engine and exists for diagnostics only.
type ConflictStorage interface {
	// AppendConflict appends an audit record, trimming the oldest
	// entries once the history exceeds maxLen
	AppendConflict(ctx context.Context, record *models.ConflictRecord, maxLen int) error

	// RecentConflicts returns up to limit newest audit records,
	// newest first
	RecentConflicts(ctx context.Context, limit int) ([]*models.ConflictRecord, error)
}
