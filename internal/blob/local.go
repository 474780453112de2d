package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes evidence files to local disk.
// Used as the Community tier store; the returned URL is a path the portal
// serves statically.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a local disk store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "./uploads"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Put stores the content under key and returns its URL.
func (s *LocalStore) Put(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, filepath.Clean("/"+key))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file %s: %w", key, err)
	}

	return "/uploads/" + key, nil
}

// Close is a no-op for local disk.
func (s *LocalStore) Close() error {
	return nil
}
