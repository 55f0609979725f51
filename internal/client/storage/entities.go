package storage

import (
	"context"

	"github.com/iudanet/offsync/internal/models"
)

//go:generate moq -out entities_mock.go . EntityStorage

// EntityStorage defines interface for storing entity records on client.
// Records are grouped by table; operations are transactionally atomic
// at the single-entity level.
type EntityStorage interface {
	// SaveRecord stores or replaces an entity record
	SaveRecord(ctx context.Context, table string, record *models.Record) error

	// GetRecord retrieves a record by ID
	// Returns ErrEntryNotFound if record doesn't exist
	GetRecord(ctx context.Context, table, id string) (*models.Record, error)

	// ListRecords returns all records of a table (including tombstones)
	ListRecords(ctx context.Context, table string) ([]*models.Record, error)

	// PurgeRecord removes a record from the store entirely.
	// Used by tombstone garbage collection, not by soft delete.
	PurgeRecord(ctx context.Context, table, id string) error
}
