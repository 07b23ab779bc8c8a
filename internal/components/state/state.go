// Package state persists the small pieces of durable state a run carries
// between invocations (the session cookies and the notified-slot cache).
package state

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Blob.Load when nothing has been saved yet.
var ErrNotFound = errors.New("state: blob not found")

// Blob is a single opaque value in durable storage.
type Blob interface {
	// Load returns the stored bytes or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored bytes, a reader never observes a partial write.
	Save(ctx context.Context, value []byte) error
	// String describes where the blob lives, for error messages.
	String() string
}
