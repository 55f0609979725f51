package storage

import (
	"context"

	"github.com/iudanet/offsync/pkg/api"
)

// DataStorage defines interface for synchronized row persistence.
// The server is the authoritative replica: it applies client changes
// with deterministic last-write-wins semantics and additive increment
// application, and serves cursor-filtered reads.
type DataStorage interface {
	// ApplyChange applies one coalesced client change to a table row.
	// Set/create payloads are accepted only if the incoming writer
	// (updated_at, device_id) wins over the stored version; increments
	// always apply additively; deletes always win. serverTime becomes
	// the row's server_updated_at when the change is accepted.
	// Returns the row as stored after the change.
	ApplyChange(ctx context.Context, table, userID string, change api.Change, serverTime int64) (*api.Row, error)

	// GetRow retrieves a single row by primary key
	// Returns ErrRowNotFound if the row doesn't exist
	GetRow(ctx context.Context, table, userID, id string) (*api.Row, error)

	// GetRowsSince retrieves all rows of a user (including tombstones)
	// with server_updated_at strictly greater than since.
	// Returns empty slice if no rows match
	GetRowsSince(ctx context.Context, table, userID string, since int64) ([]*api.Row, error)
}
