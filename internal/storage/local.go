package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// LocalBackend stores media on the local filesystem. URL returns the plain
// file path; there is nothing to sign.
type LocalBackend struct{}

// NewLocalBackend creates a filesystem backend.
func NewLocalBackend() *LocalBackend { return &LocalBackend{} }

func (b *LocalBackend) Upload(_ context.Context, loc Location, data []byte, _ string) error {
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
		return apperrors.StorageFailed(loc.String(), apperrors.OpUpload, "create parent directory failed", err)
	}
	if err := os.WriteFile(loc.Path, data, 0o644); err != nil {
		return apperrors.StorageFailed(loc.String(), apperrors.OpUpload, "write file failed", err)
	}
	return nil
}

func (b *LocalBackend) Download(_ context.Context, loc Location) ([]byte, error) {
	data, err := os.ReadFile(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.ObjectNotFound(loc.String(), apperrors.OpDownload)
		}
		return nil, apperrors.StorageFailed(loc.String(), apperrors.OpDownload, "read file failed", err)
	}
	return data, nil
}

func (b *LocalBackend) Exists(_ context.Context, loc Location) (bool, error) {
	_, err := os.Stat(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, apperrors.StorageFailed(loc.String(), apperrors.OpExists, "stat failed", err)
	}
	return true, nil
}

func (b *LocalBackend) URL(_ context.Context, loc Location, _ time.Duration) (string, error) {
	return loc.Path, nil
}

func (b *LocalBackend) Delete(_ context.Context, loc Location) error {
	if err := os.Remove(loc.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.ObjectNotFound(loc.String(), apperrors.OpDelete)
		}
		return apperrors.StorageFailed(loc.String(), apperrors.OpDelete, "remove failed", err)
	}
	return nil
}
