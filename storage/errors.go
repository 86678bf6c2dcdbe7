package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a key is not present in a bucket.
	ErrNotFound = errors.New("key not found")
)
