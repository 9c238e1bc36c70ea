package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/itakecare/leazr-docgen/logger"
)

// Filesystem stores blobs as files under a base directory. Keys map directly
// to relative paths.
type Filesystem struct {
	basePath string
	logger   *zap.Logger
}

// NewFilesystem resolves basePath and creates it if needed.
func NewFilesystem(basePath string, log *zap.Logger) (*Filesystem, error) {
	if basePath == "" {
		return nil, fmt.Errorf("blob: base path required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create base path: %w", err)
	}
	return &Filesystem{basePath: abs, logger: logger.OrNop(log).Named("blob")}, nil
}

// Store writes data at key, replacing any previous content. The write goes
// through a temporary file so readers never see a partial document.
func (f *Filesystem) Store(_ context.Context, key string, data []byte) error {
	path, err := f.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blob: create directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("blob: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("blob: rename temp file: %w", err)
	}
	f.logger.Debug("blob stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Fetch reads the blob stored under key.
func (f *Filesystem) Fetch(_ context.Context, key string) ([]byte, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mapFSError(err, "read file")
	}
	return data, nil
}

// Delete removes key. Deleting a missing key is not an error. Directories
// left empty below the base path are removed.
func (f *Filesystem) Delete(_ context.Context, key string) error {
	path, err := f.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return mapFSError(err, "remove file")
	}

	dir := filepath.Dir(path)
	if dir != f.basePath && strings.HasPrefix(dir, f.basePath) {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) == 0 {
			if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
				f.logger.Warn("failed to remove empty directory", zap.String("dir", dir), zap.Error(err))
			}
		}
	}
	return nil
}

// Exists reports whether key is present.
func (f *Filesystem) Exists(_ context.Context, key string) (bool, error) {
	path, err := f.fullPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapFSError(err, "stat file")
	}
	return true, nil
}

func (f *Filesystem) fullPath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", ErrInvalidKey
	}
	full := filepath.Join(f.basePath, cleaned)
	if !strings.HasPrefix(full, f.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return full, nil
}

func mapFSError(err error, op string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	default:
		return fmt.Errorf("blob: %s: %w", op, err)
	}
}
