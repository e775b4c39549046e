// Package handler exposes the generation tools as plain service methods.
// Each service validates typed parameters, resolves a provider through the
// registry, and delivers outputs inline or through the storage resolver.
package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/genmedia/server/internal/shared/errors"
	"github.com/genmedia/server/internal/storage"
)

// MediaResult is one delivered media item. Data is set when the caller asked
// for inline bytes; Location is set when the item was written to a file or
// uploaded to remote storage.
type MediaResult struct {
	Data     []byte `json:"-"`
	Location string `json:"location,omitempty"`
	MIMEType string `json:"mime_type"`
}

// deliver routes generated bytes to their destination. An empty destination
// returns the bytes inline; otherwise the data is staged to a temp file and
// handed to the resolver, which copies local destinations and uploads remote
// ones.
func deliver(ctx context.Context, resolver *storage.Resolver, data []byte, mimeType, destination string) (MediaResult, error) {
	if destination == "" {
		return MediaResult{Data: data, MIMEType: mimeType}, nil
	}

	tmp, err := os.CreateTemp("", "genmedia-*"+filepath.Ext(destination))
	if err != nil {
		return MediaResult{}, apperrors.StorageFailed(destination, apperrors.OpUpload, "create temp file failed", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return MediaResult{}, apperrors.StorageFailed(destination, apperrors.OpUpload, "write temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		return MediaResult{}, apperrors.StorageFailed(destination, apperrors.OpUpload, "close temp file failed", err)
	}

	delivered, err := resolver.HandleOutput(ctx, tmpPath, destination)
	if err != nil {
		return MediaResult{}, err
	}
	return MediaResult{Location: delivered, MIMEType: mimeType}, nil
}

// destinationFor derives the destination for item index out of total. A
// single item keeps the destination as given; multiple items get a numeric
// suffix before the extension.
func destinationFor(destination string, index, total int) string {
	if destination == "" || total <= 1 {
		return destination
	}
	ext := filepath.Ext(destination)
	base := strings.TrimSuffix(destination, ext)
	return fmt.Sprintf("%s_%d%s", base, index+1, ext)
}

// statusLabel maps an operation outcome to a metric status label.
func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
