// Package blob stores uploaded images and returns the public URL they are
// served under.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"thoughtbox/internal/domain"
)

var extensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// FileStore writes blobs to a local directory and serves them under baseURL.
// This is the default store; deployments with an external media service use
// RemoteStore instead.
type FileStore struct {
	dir     string
	baseURL string
}

var _ domain.BlobStore = (*FileStore)(nil)

// NewFileStore creates dir if needed. baseURL is the public prefix the files
// are served under, e.g. "http://localhost:8080/uploads".
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to, for serving them over HTTP.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrValidation)
	}
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported image type %q", domain.ErrValidation, contentType)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return s.baseURL + "/" + name, nil
}
