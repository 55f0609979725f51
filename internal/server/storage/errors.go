package storage

import "errors"

// Common storage errors
var (
	// ErrRowNotFound indicates that row was not found in storage
	ErrRowNotFound = errors.New("row not found")
)
