// Package storage archives finished videos. It defines the Archiver port
// and implementations for local-only runs and S3 upload.
package storage

import (
	"context"
	"io"
)

// Archiver uploads a finished video to durable storage.
type Archiver interface {
	// Upload stores data under key and returns the public URL.
	// Returns ErrS3NotConfigured when no remote storage is configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
