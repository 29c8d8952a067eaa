package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadNotConfigured(t *testing.T) {
	s := NewLocalStorage()

	_, err := s.Upload(context.Background(), "videos/a.mp4", strings.NewReader("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrS3NotConfigured)
}

// Compile-time checks that both implementations satisfy the port.
var (
	_ Archiver = (*LocalStorage)(nil)
	_ Archiver = (*S3Storage)(nil)
)
