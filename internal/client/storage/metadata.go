package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// GetDeviceID returns the persistent device identifier,
	// generating and storing one on first call
	GetDeviceID(ctx context.Context) (string, error)
}
