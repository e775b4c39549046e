package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/genmedia/server/internal/shared/errors"
	"github.com/genmedia/server/internal/utils/metrics"
)

// contentTypeByExt maps file extensions to the content type recorded on
// upload. Unknown extensions fall back to application/octet-stream.
var contentTypeByExt = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".gif":  "image/gif",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// ContentTypeForPath returns the content type for a file path by extension.
func ContentTypeForPath(path string) string {
	if ct, ok := contentTypeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Resolver stages media between remote storage and the local filesystem so
// processing tools can work on plain files. The resolver itself is shared
// and stateless; each operation opens its own Staging scope for inputs.
type Resolver struct {
	backends map[Scheme]Backend
	tempDir  string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewResolver creates a resolver dispatching to the given backends. tempDir
// is where remote inputs are staged; empty means the system temp dir.
func NewResolver(backends map[Scheme]Backend, tempDir string, log *zap.Logger) *Resolver {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		backends: backends,
		tempDir:  tempDir,
		log:      log.Named("resolver"),
	}
}

// WithMetrics attaches transfer metrics. Optional.
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

func (r *Resolver) recordTransfer(scheme Scheme, direction string, bytes int, err error) {
	if r.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordStorageTransfer(string(scheme), direction, status, bytes)
}

func (r *Resolver) backend(loc Location) (Backend, error) {
	b, ok := r.backends[loc.Scheme]
	if !ok {
		return nil, apperrors.InvalidLocation(loc.String(), "no backend for scheme "+string(loc.Scheme))
	}
	return b, nil
}

// NewStaging opens a scratch scope for one operation. Files staged through
// the scope live until its Cleanup, so concurrent operations sharing the
// resolver never remove each other's inputs.
func (r *Resolver) NewStaging() *Staging {
	return &Staging{r: r}
}

// Staging tracks the scratch files of a single operation.
type Staging struct {
	r *Resolver

	mu      sync.Mutex
	scratch []string
}

// ResolveInput makes a raw input location usable as a local file path. Local
// paths pass through untouched with no I/O; remote objects are downloaded to
// a scratch file that this scope's Cleanup later removes.
func (st *Staging) ResolveInput(ctx context.Context, raw string) (string, error) {
	r := st.r

	loc, err := ParseLocation(raw)
	if err != nil {
		return "", err
	}

	if loc.IsLocal() {
		return loc.Path, nil
	}

	b, err := r.backend(loc)
	if err != nil {
		return "", err
	}

	data, err := b.Download(ctx, loc)
	r.recordTransfer(loc.Scheme, "download", len(data), err)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + filepath.Ext(loc.Key)
	path := filepath.Join(r.tempDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperrors.StorageFailed(loc.String(), apperrors.OpDownload, "write scratch file failed", err)
	}

	st.mu.Lock()
	st.scratch = append(st.scratch, path)
	st.mu.Unlock()

	r.log.Debug("staged remote input",
		zap.String("location", loc.String()),
		zap.String("path", path))
	return path, nil
}

// Cleanup removes every scratch file this scope created. Safe to call
// multiple times and on every exit path.
func (st *Staging) Cleanup() {
	st.mu.Lock()
	paths := st.scratch
	st.scratch = nil
	st.mu.Unlock()

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			st.r.log.Warn("failed to remove scratch file",
				zap.String("path", path),
				zap.Error(err))
		}
	}
}

// HandleOutput delivers a locally produced file to its destination and
// returns the destination's canonical location string. Local destinations
// are plain copies with no backend calls; remote destinations are uploaded
// with a content type inferred from the file extension.
func (r *Resolver) HandleOutput(ctx context.Context, localPath, destination string) (string, error) {
	loc, err := ParseLocation(destination)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", apperrors.StorageFailed(destination, apperrors.OpUpload, "read output file failed", err)
	}

	if loc.IsLocal() {
		if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
			return "", apperrors.StorageFailed(destination, apperrors.OpUpload, "create destination directory failed", err)
		}
		if err := os.WriteFile(loc.Path, data, 0o644); err != nil {
			return "", apperrors.StorageFailed(destination, apperrors.OpUpload, "copy output failed", err)
		}
		return loc.String(), nil
	}

	b, err := r.backend(loc)
	if err != nil {
		return "", err
	}

	uploadErr := b.Upload(ctx, loc, data, ContentTypeForPath(localPath))
	r.recordTransfer(loc.Scheme, "upload", len(data), uploadErr)
	if uploadErr != nil {
		return "", uploadErr
	}

	r.log.Debug("delivered output",
		zap.String("from", localPath),
		zap.String("to", loc.String()))
	return loc.String(), nil
}
