// Package archive persists processed page dumps to blob storage so raw
// provenance survives local cleanup. By using an interface, we decouple the
// pipeline from a specific backend.
package archive

import "context"

// Provider writes one blob and returns a URI locating it.
type Provider interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Close() error
}

// NoOpProvider discards blobs. Useful when archival is not configured.
type NoOpProvider struct{}

// Put for NoOpProvider does nothing and returns an empty URI.
func (n *NoOpProvider) Put(_ context.Context, _ string, _ []byte) (string, error) {
	return "", nil
}

// Close for NoOpProvider does nothing.
func (n *NoOpProvider) Close() error { return nil }
