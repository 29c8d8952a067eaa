package storage

import (
	"context"
	"errors"
	"io"
)

// ErrS3NotConfigured is returned when an upload is attempted without
// remote storage configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage is the Archiver used when no S3 configuration is provided.
// Finished videos stay on the output volume; Upload always refuses.
type LocalStorage struct{}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// Upload is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Upload(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
