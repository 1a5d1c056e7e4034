package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore keeps one file per image in a single directory.
type DiskStore struct {
	dir string
}

// NewDiskStore prepares dir, creating it when absent.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory holding the images.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes data under a new name via temp file, fsync and rename, so a
// reader never observes a partial file under the final name.
func (s *DiskStore) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	name, err := NewFilename(ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create dir: %v", ErrStorageWrite, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrStorageWrite, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: write: %v", ErrStorageWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: fsync: %v", ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: close: %v", ErrStorageWrite, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: chmod: %v", ErrStorageWrite, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: rename: %v", ErrStorageWrite, err)
	}

	return name, nil
}

// Open returns a reader for a stored image.
func (s *DiskStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidFilename(name) {
		return nil, ErrInvalidFilename
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return nil, fmt.Errorf("open image %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes a stored image. A missing file yields ErrFileMissing.
func (s *DiskStore) Remove(ctx context.Context, name string) error {
	if !ValidFilename(name) {
		return ErrInvalidFilename
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return fmt.Errorf("remove image %s: %w", name, err)
	}
	return nil
}
