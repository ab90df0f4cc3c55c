package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCS stores blobs in a Google Cloud Storage bucket. Credentials come from
// the application default chain; the bucket must already exist.
type GCS struct {
	client *gcs.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, &Error{Op: "init", Key: "", Err: errors.New("gcs bucket is not configured")}
	}
	cli, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, &Error{Op: "init", Key: bucket, Err: err}
	}
	if _, err := cli.Bucket(bucket).Attrs(ctx); err != nil {
		return nil, &Error{Op: "init", Key: bucket, Err: err}
	}
	return &GCS{client: cli, bucket: bucket}, nil
}

func (g *GCS) Upload(ctx context.Context, key string, r io.Reader) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return &Error{Op: "upload", Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return &Error{Op: "upload", Key: key, Err: err}
	}
	return nil
}

func (g *GCS) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, &Error{Op: "read", Key: key, Err: err}
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Op: "read", Key: key, Err: err}
	}
	return data, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return &Error{Op: "delete", Key: key, Err: err}
	}
	return nil
}
