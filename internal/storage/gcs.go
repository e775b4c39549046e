package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/genmedia/server/internal/infra/auth"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

const gcsBaseURL = "https://storage.googleapis.com"

// GCSBackend talks to Google Cloud Storage through its JSON API with bearer
// tokens from the ambient credentials. No GCS SDK; the surface needed here
// is four endpoints.
type GCSBackend struct {
	client  *http.Client
	tokens  auth.TokenSource
	baseURL string
	log     *zap.Logger
}

// NewGCSBackend creates a GCS backend over the given HTTP client and token
// source.
func NewGCSBackend(client *http.Client, tokens auth.TokenSource, log *zap.Logger) *GCSBackend {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GCSBackend{
		client:  client,
		tokens:  tokens,
		baseURL: gcsBaseURL,
		log:     log.Named("gcs"),
	}
}

// WithBaseURL points the backend at a different API host, for tests.
func (b *GCSBackend) WithBaseURL(baseURL string) *GCSBackend {
	b.baseURL = baseURL
	return b
}

func (b *GCSBackend) do(ctx context.Context, method, rawURL string, body []byte, contentType string, scopes []string) (*http.Response, error) {
	token, err := b.tokens.Token(ctx, scopes)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return b.client.Do(req)
}

// Upload writes data with a media upload request.
func (b *GCSBackend) Upload(ctx context.Context, loc Location, data []byte, contentType string) error {
	uploadURL := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		b.baseURL, loc.Bucket, url.QueryEscape(loc.Key))

	resp, err := b.do(ctx, http.MethodPost, uploadURL, data, contentType, []string{auth.ScopeStorageReadWrite})
	if err != nil {
		return apperrors.StorageFailed(loc.String(), apperrors.OpUpload, "upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.StorageFailed(loc.String(), apperrors.OpUpload,
			fmt.Sprintf("failed with status %d: %s", resp.StatusCode, msg), nil)
	}

	b.log.Debug("uploaded object",
		zap.String("location", loc.String()),
		zap.Int("bytes", len(data)))
	return nil
}

// Download reads the object media.
func (b *GCSBackend) Download(ctx context.Context, loc Location) ([]byte, error) {
	mediaURL := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		b.baseURL, loc.Bucket, url.QueryEscape(loc.Key))

	resp, err := b.do(ctx, http.MethodGet, mediaURL, nil, "", []string{auth.ScopeStorageReadOnly})
	if err != nil {
		return nil, apperrors.StorageFailed(loc.String(), apperrors.OpDownload, "download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.ObjectNotFound(loc.String(), apperrors.OpDownload)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.StorageFailed(loc.String(), apperrors.OpDownload,
			fmt.Sprintf("failed with status %d: %s", resp.StatusCode, msg), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.StorageFailed(loc.String(), apperrors.OpDownload, "failed to read response body", err)
	}
	return data, nil
}

// Exists checks object metadata.
func (b *GCSBackend) Exists(ctx context.Context, loc Location) (bool, error) {
	metaURL := fmt.Sprintf("%s/storage/v1/b/%s/o/%s",
		b.baseURL, loc.Bucket, url.QueryEscape(loc.Key))

	resp, err := b.do(ctx, http.MethodGet, metaURL, nil, "", []string{auth.ScopeStorageReadOnly})
	if err != nil {
		return false, apperrors.StorageFailed(loc.String(), apperrors.OpExists, "exists check request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, apperrors.StorageFailed(loc.String(), apperrors.OpExists,
			fmt.Sprintf("failed with status %d: %s", resp.StatusCode, msg), nil)
	}
}

// URL returns the token-authorized media address for the object. The JSON
// API has no presign equivalent, so the TTL is not applied.
func (b *GCSBackend) URL(_ context.Context, loc Location, _ time.Duration) (string, error) {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		b.baseURL, loc.Bucket, url.QueryEscape(loc.Key)), nil
}

// Delete removes the object.
func (b *GCSBackend) Delete(ctx context.Context, loc Location) error {
	deleteURL := fmt.Sprintf("%s/storage/v1/b/%s/o/%s",
		b.baseURL, loc.Bucket, url.QueryEscape(loc.Key))

	resp, err := b.do(ctx, http.MethodDelete, deleteURL, nil, "", []string{auth.ScopeStorageReadWrite})
	if err != nil {
		return apperrors.StorageFailed(loc.String(), apperrors.OpDelete, "delete request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ObjectNotFound(loc.String(), apperrors.OpDelete)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.StorageFailed(loc.String(), apperrors.OpDelete,
			fmt.Sprintf("failed with status %d: %s", resp.StatusCode, msg), nil)
	}
	return nil
}
