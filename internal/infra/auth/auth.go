// Package auth provides bearer tokens for Google Cloud APIs using
// Application Default Credentials.
package auth

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// Common OAuth2 scopes for Google Cloud APIs.
const (
	ScopeCloudPlatform    = "https://www.googleapis.com/auth/cloud-platform"
	ScopeStorageReadWrite = "https://www.googleapis.com/auth/devstorage.read_write"
	ScopeStorageReadOnly  = "https://www.googleapis.com/auth/devstorage.read_only"
)

// TokenSource yields valid bearer tokens for the given scopes. Implementations
// cache tokens and refresh them before expiry; callers must not cache tokens
// themselves.
type TokenSource interface {
	Token(ctx context.Context, scopes []string) (string, error)
}

// GoogleTokenSource resolves tokens through Application Default Credentials.
// One refreshing oauth2 source is kept per scope set; concurrent requests for
// the same scope set share a single in-flight refresh.
type GoogleTokenSource struct {
	mu      sync.RWMutex
	sources map[string]oauth2.TokenSource
	group   singleflight.Group

	// newSource is swapped in tests.
	newSource func(ctx context.Context, scopes ...string) (oauth2.TokenSource, error)
}

// NewGoogleTokenSource creates a token source backed by ADC. Credential
// discovery is deferred until the first Token call so construction never
// touches the network.
func NewGoogleTokenSource() *GoogleTokenSource {
	return &GoogleTokenSource{
		sources:   make(map[string]oauth2.TokenSource),
		newSource: google.DefaultTokenSource,
	}
}

// Token returns a valid access token for the requested scopes.
func (g *GoogleTokenSource) Token(ctx context.Context, scopes []string) (string, error) {
	key := scopeKey(scopes)

	g.mu.RLock()
	src, ok := g.sources[key]
	g.mu.RUnlock()

	if !ok {
		v, err, _ := g.group.Do(key, func() (any, error) {
			g.mu.RLock()
			if existing, ok := g.sources[key]; ok {
				g.mu.RUnlock()
				return existing, nil
			}
			g.mu.RUnlock()

			created, err := g.newSource(context.Background(), scopes...)
			if err != nil {
				return nil, apperrors.AuthNotConfigured()
			}

			g.mu.Lock()
			g.sources[key] = created
			g.mu.Unlock()
			return created, nil
		})
		if err != nil {
			return "", err
		}
		src = v.(oauth2.TokenSource)
	}

	tok, err := src.Token()
	if err != nil {
		return "", apperrors.RefreshFailed(err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func scopeKey(scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// Static returns a TokenSource that always yields tok. Used in tests and
// for pre-issued credentials.
func Static(tok string) TokenSource {
	return staticSource(tok)
}

type staticSource string

func (s staticSource) Token(_ context.Context, _ []string) (string, error) {
	return string(s), nil
}
