package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestStatic(t *testing.T) {
	src := Static("test-token-123")

	tok, err := src.Token(context.Background(), []string{"scope"})
	require.NoError(t, err)
	assert.Equal(t, "test-token-123", tok)

	// Scopes are ignored by the static source.
	tok, err = src.Token(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "test-token-123", tok)
}

func TestScopeKey_OrderInsensitive(t *testing.T) {
	a := scopeKey([]string{ScopeCloudPlatform, ScopeStorageReadOnly})
	b := scopeKey([]string{ScopeStorageReadOnly, ScopeCloudPlatform})
	assert.Equal(t, a, b)

	c := scopeKey([]string{ScopeStorageReadWrite})
	assert.NotEqual(t, a, c)
}

func TestGoogleTokenSource_CachesPerScopeSet(t *testing.T) {
	var created atomic.Int32

	g := NewGoogleTokenSource()
	g.newSource = func(_ context.Context, _ ...string) (oauth2.TokenSource, error) {
		created.Add(1)
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: "tok",
			Expiry:      time.Now().Add(time.Hour),
		}), nil
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		tok, err := g.Token(ctx, []string{ScopeCloudPlatform})
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	}

	assert.Equal(t, int32(1), created.Load(), "same scope set should reuse one source")

	_, err := g.Token(ctx, []string{ScopeStorageReadOnly})
	require.NoError(t, err)
	assert.Equal(t, int32(2), created.Load(), "new scope set creates a new source")
}

func TestGoogleTokenSource_CoalescesConcurrentInit(t *testing.T) {
	var created atomic.Int32
	release := make(chan struct{})

	g := NewGoogleTokenSource()
	g.newSource = func(_ context.Context, _ ...string) (oauth2.TokenSource, error) {
		created.Add(1)
		<-release
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: "tok",
			Expiry:      time.Now().Add(time.Hour),
		}), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Token(context.Background(), []string{ScopeCloudPlatform})
			assert.NoError(t, err)
		}()
	}

	// Let all goroutines pile up on the singleflight before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), created.Load(), "concurrent first requests must share one init")
}

func TestGoogleTokenSource_NotConfigured(t *testing.T) {
	g := NewGoogleTokenSource()
	g.newSource = func(_ context.Context, _ ...string) (oauth2.TokenSource, error) {
		return nil, assert.AnError
	}

	_, err := g.Token(context.Background(), []string{ScopeCloudPlatform})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
