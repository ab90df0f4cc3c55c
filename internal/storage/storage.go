// Package storage provides blob persistence for uploaded documents and
// extracted images behind a backend-neutral interface.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/local/slidenode/internal/config"
)

// Store is the blob backend contract. Keys are slash-separated paths,
// e.g. documents/<doc_id>/images/<image_id>.png.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Error wraps a backend failure with the operation and key involved.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Store for the configured backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocal(cfg.LocalDir), nil
	case "s3", "minio":
		return NewS3(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket)
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
}
