package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileBlobRepo keeps the schedule blob in a single JSON file.  Writes go to
// a temporary file in the same directory which then replaces the target,
// so readers never observe a half-written blob.
type FileBlobRepo struct {
	path string
}

// NewFileBlobRepo returns a FileBlobRepo writing to path.  The parent
// directory is created on first write.
func NewFileBlobRepo(path string) *FileBlobRepo { return &FileBlobRepo{path: path} }

// Path returns the file backing the repo.
func (r *FileBlobRepo) Path() string { return r.path }

// Read returns the file content or ErrBlobNotFound when the file does not
// exist.
func (r *FileBlobRepo) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read schedule file %s: %w", r.path, err)
	}
	return data, nil
}

// Write atomically replaces the file with data.
func (r *FileBlobRepo) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schedule dir %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(r.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp schedule file: %w", err)
	}
	tmpPath := tmpFile.Name()
	// Removing after a successful rename is a no-op.
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp schedule file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp schedule file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp schedule file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("replace schedule file %s: %w", r.path, err)
	}
	return nil
}
