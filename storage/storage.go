package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned (wrapped) by Download when the object is missing.
var ErrNotFound = errors.New("storage: object not found")

// FileInfo contains metadata about a stored object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage defines object storage operations. Paths are slash-separated keys.
type Storage interface {
	// Upload writes reader to path, replacing any existing object.
	Upload(ctx context.Context, path string, reader io.Reader) error
	// Download opens the object at path. The caller closes the reader.
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes the object; a missing object is not an error.
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	URL(ctx context.Context, path string) (string, error)
	// List returns objects whose path starts with prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// LocalPather is implemented by backends whose objects already live on the
// local filesystem.
type LocalPather interface {
	LocalPath(path string) (string, error)
}

// ReadAll downloads the whole object at path.
func ReadAll(ctx context.Context, s Storage, path string) ([]byte, error) {
	rc, err := s.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Materialize returns a local filesystem path holding the object at path.
// Local backends return the file in place; other backends download into a
// temporary file that cleanup removes.
func Materialize(ctx context.Context, s Storage, path string) (local string, cleanup func(), err error) {
	if lp, ok := s.(LocalPather); ok {
		p, err := lp.LocalPath(path)
		return p, func() {}, err
	}

	rc, err := s.Download(ctx, path)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "speakerhub-*"+filepath.Ext(path))
	if err != nil {
		return "", nil, fmt.Errorf("storage: create temp file: %w", err)
	}
	cleanup = func() { _ = os.Remove(f.Name()) }
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("storage: copy to temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
