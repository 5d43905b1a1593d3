package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemStore implements ObjectStore on a local directory. It backs
// development setups and tests; presigned URLs it mints are file:// paths and
// only meaningful to processes sharing the directory.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore creates the base directory if needed.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir}, nil
}

// path resolves key under baseDir, rejecting directory traversal.
func (fs *FilesystemStore) path(key string) (string, error) {
	path := filepath.Join(fs.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(fs.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key %q: path traversal", key)
	}
	return path, nil
}

func (fs *FilesystemStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, public bool) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directories for %q: %w", key, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (fs *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := fs.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return f, nil
}

func (fs *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := fs.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", key, err)
	}
	return true, nil
}

func (fs *FilesystemStore) DeleteMany(ctx context.Context, keys []string) error {
	for _, key := range keys {
		path, err := fs.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	return nil
}

func (fs *FilesystemStore) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	path, err := fs.path(key)
	if err != nil {
		return "", err
	}
	return "file://" + path, nil
}
