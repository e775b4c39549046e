package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genmedia/server/internal/infra/auth"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

func TestGCSUpload(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewGCSBackend(srv.Client(), auth.Static("tok-123"), nil).WithBaseURL(srv.URL)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "path/to/out.png"}

	err := b.Upload(context.Background(), loc, []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "/upload/storage/v1/b/bucket/o", gotPath)
	assert.Contains(t, gotQuery, "uploadType=media")
	assert.Contains(t, gotQuery, "name=path%2Fto%2Fout.png")
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, []byte("png-bytes"), gotBody)
}

func TestGCSUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer srv.Close()

	b := NewGCSBackend(srv.Client(), auth.Static("tok"), nil).WithBaseURL(srv.URL)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "k"}

	err := b.Upload(context.Background(), loc, []byte("x"), "application/octet-stream")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "denied")
}

func TestGCSDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b/bucket/o/clip.mp4", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	b := NewGCSBackend(srv.Client(), auth.Static("tok"), nil).WithBaseURL(srv.URL)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "clip.mp4"}

	data, err := b.Download(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), data)
}

func TestGCSDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewGCSBackend(srv.Client(), auth.Static("tok"), nil).WithBaseURL(srv.URL)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "missing"}

	_, err := b.Download(context.Background(), loc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStorageNotFound))
}

func TestGCSExists(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b/bucket/o/k", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	b := NewGCSBackend(srv.Client(), auth.Static("tok"), nil).WithBaseURL(srv.URL)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "k"}

	ok, err := b.Exists(context.Background(), loc)
	require.NoError(t, err)
	assert.True(t, ok)

	status = http.StatusNotFound
	ok, err = b.Exists(context.Background(), loc)
	require.NoError(t, err)
	assert.False(t, ok)

	status = http.StatusInternalServerError
	_, err = b.Exists(context.Background(), loc)
	require.Error(t, err)
}

func TestGCSDelete(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := NewGCSBackend(srv.Client(), auth.Static("tok"), nil).WithBaseURL(srv.URL)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "k"}

	require.NoError(t, b.Delete(context.Background(), loc))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestGCSURLEscapesKey(t *testing.T) {
	b := NewGCSBackend(nil, auth.Static("tok"), nil)
	loc := Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "a b/c.mp4"}

	url, err := b.URL(context.Background(), loc, 0)
	require.NoError(t, err)
	assert.Contains(t, url, "/b/bucket/o/a+b%2Fc.mp4")
	assert.Contains(t, url, "alt=media")
}
