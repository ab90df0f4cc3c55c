package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Local stores blobs on the filesystem under a base directory.
// Intended for development and tests.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	if dir == "" {
		dir = "./data"
	}
	return &Local{dir: dir}
}

func (l *Local) Upload(ctx context.Context, key string, r io.Reader) error {
	target := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Error{Op: "upload", Key: key, Err: err}
	}
	f, err := os.Create(target)
	if err != nil {
		return &Error{Op: "upload", Key: key, Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return &Error{Op: "upload", Key: key, Err: err}
	}
	return nil
}

func (l *Local) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(l.dir, filepath.FromSlash(key)))
	if err != nil {
		return nil, &Error{Op: "read", Key: key, Err: err}
	}
	return b, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	target := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}
