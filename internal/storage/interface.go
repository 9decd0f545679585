package storage

import (
	"context"
	"io"
)

// ObjectStorage is the bucket abstraction the audio archive is built on.
// Keys are bucket-relative; Download on a missing key returns an error.
type ObjectStorage interface {
	// Upload stores size bytes read from reader under key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens the object; the caller closes it
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object; missing keys are not an error
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the bucket when the provider allows it
	EnsureBucket(ctx context.Context) error
}
