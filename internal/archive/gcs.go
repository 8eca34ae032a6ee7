package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// GCSProvider writes blobs to a Google Cloud Storage bucket.
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSProvider creates a GCS client using Application Default Credentials.
func NewGCSProvider(ctx context.Context, bucket, prefix string) (*GCSProvider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSProvider{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put uploads the blob and returns its gs:// URI.
func (p *GCSProvider) Put(ctx context.Context, key string, data []byte) (string, error) {
	object := key
	if p.prefix != "" {
		object = path.Join(p.prefix, key)
	}
	w := p.client.Bucket(p.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload blob %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize blob %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, object), nil
}

// Close releases the GCS client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}
