// Package blob stores evidence files (check-in selfies/videos, audit
// attachments) and returns stable URLs for them.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Store writes binary evidence content and returns a stable URL.
type Store interface {
	// Put stores the content under key and returns its URL.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (string, error)

	// Lifecycle
	Close() error
}

// New creates a blob store based on configuration.
func New(ctx context.Context, cfg domain.BlobConfig) (Store, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStore(cfg.LocalDir)

	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket)

	default:
		return nil, fmt.Errorf("unsupported blob store type: %s", cfg.Type)
	}
}
