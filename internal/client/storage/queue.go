package storage

import (
	"context"
	"time"

	"github.com/iudanet/offsync/internal/models"
)

//go:generate moq -out queue_mock.go . QueueStorage

// QueueStorage defines interface for the durable operation queue.
// Append is write-ahead: it must be durable before the caller's
// mutating call returns.
type QueueStorage interface {
	// AppendOperation durably appends an operation and assigns its
	// monotonic local ID
	AppendOperation(ctx context.Context, op *models.Operation) (uint64, error)

	// GroupOperations returns all queued operations for one entity
	// in enqueue (ID) order, for coalescing
	GroupOperations(ctx context.Context, table, entityID string) ([]*models.Operation, error)

	// RemoveOperations deletes acknowledged operations by exact ID.
	// IDs that are already gone are ignored: the queue may have been
	// appended to concurrently and removal is optimistic.
	RemoveOperations(ctx context.Context, ids []uint64) error

	// UpdateRetryState persists retry bookkeeping after a failed push
	UpdateRetryState(ctx context.Context, ids []uint64, retries int, nextRetryAt time.Time) error

	// PendingEntities returns the distinct (table, entityId) pairs
	// with queued operations; drives push scheduling
	PendingEntities(ctx context.Context) ([]models.EntityKey, error)

	// CountOperations returns the number of queued operations
	CountOperations(ctx context.Context) (int, error)
}
