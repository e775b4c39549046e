package storage

import (
	"context"
	"time"
)

// Backend performs object operations against one storage scheme. Locations
// handed to a backend always match its scheme; the Resolver dispatches.
type Backend interface {
	// Upload writes data to the location with the given content type.
	Upload(ctx context.Context, loc Location, data []byte, contentType string) error
	// Download reads the full object at the location.
	Download(ctx context.Context, loc Location) ([]byte, error)
	// Exists reports whether the object exists.
	Exists(ctx context.Context, loc Location) (bool, error)
	// URL returns an address a client can fetch the object from. Backends
	// with presign support honor the TTL; others return a direct address.
	URL(ctx context.Context, loc Location, ttl time.Duration) (string, error)
	// Delete removes the object.
	Delete(ctx context.Context, loc Location) error
}
