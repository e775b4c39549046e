// Package storage provides media location parsing, object storage backends,
// and the resolver that stages remote media for local processing.
package storage

import (
	"strings"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// Scheme identifies where a media location lives.
type Scheme string

const (
	SchemeLocal Scheme = "local"
	SchemeGCS   Scheme = "gs"
	SchemeS3    Scheme = "s3"
)

// Location is a parsed media location. Local locations carry only Path;
// remote locations carry Scheme, Bucket and Key.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
	Path   string
}

// IsLocal reports whether the location is a filesystem path.
func (l Location) IsLocal() bool { return l.Scheme == SchemeLocal }

// String renders the location back to its canonical form. Parsing a location
// and rendering it returns the original string.
func (l Location) String() string {
	if l.IsLocal() {
		return l.Path
	}
	return string(l.Scheme) + "://" + l.Bucket + "/" + l.Key
}

// ParseLocation classifies a raw location string. `gs://bucket/key` and
// `s3://bucket/key` are remote; anything else is a local path. A remote
// location must carry a non-empty bucket and a key separator.
func ParseLocation(raw string) (Location, error) {
	var scheme Scheme
	var rest string

	switch {
	case strings.HasPrefix(raw, "gs://"):
		scheme, rest = SchemeGCS, strings.TrimPrefix(raw, "gs://")
	case strings.HasPrefix(raw, "s3://"):
		scheme, rest = SchemeS3, strings.TrimPrefix(raw, "s3://")
	default:
		if raw == "" {
			return Location{}, apperrors.InvalidLocation(raw, "empty location")
		}
		return Location{Scheme: SchemeLocal, Path: raw}, nil
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok {
		return Location{}, apperrors.InvalidLocation(raw, "location must contain bucket and key")
	}
	if bucket == "" {
		return Location{}, apperrors.InvalidLocation(raw, "bucket name cannot be empty")
	}

	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}
