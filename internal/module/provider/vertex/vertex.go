// Package vertex implements media providers on the Vertex AI prediction
// APIs: Imagen images, Veo video, Chirp speech and Lyria music.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/genmedia/server/internal/infra/auth"
	"github.com/genmedia/server/internal/shared/config"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// Client carries the plumbing shared by every Vertex provider: pooled HTTP
// client, bearer tokens, endpoint construction and a circuit breaker around
// the vendor.
type Client struct {
	http    *http.Client
	tokens  auth.TokenSource
	cfg     *config.VertexConfig
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger

	// endpoint builds the model endpoint URL; swappable in tests.
	endpoint func(model, verb string) string
}

// NewClient creates the shared Vertex client.
func NewClient(httpClient *http.Client, tokens auth.TokenSource, cfg *config.VertexConfig, breakerCfg *config.BreakerConfig, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}

	threshold := uint32(5)
	timeout := 30 * time.Second
	if breakerCfg != nil {
		if breakerCfg.FailureThreshold > 0 {
			threshold = breakerCfg.FailureThreshold
		}
		if breakerCfg.Timeout > 0 {
			timeout = breakerCfg.Timeout
		}
	}

	settings := gobreaker.Settings{
		Name:        "vertex",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Client-side rejections must not trip the breaker.
			return err == nil || apperrors.IsInvalidInput(err)
		},
	}

	return &Client{
		http:     httpClient,
		tokens:   tokens,
		cfg:      cfg,
		breaker:  gobreaker.NewCircuitBreaker[[]byte](settings),
		log:      log.Named("vertex"),
		endpoint: cfg.Endpoint,
	}
}

// WithEndpointFunc replaces endpoint construction, for tests.
func (c *Client) WithEndpointFunc(fn func(model, verb string) string) *Client {
	c.endpoint = fn
	return c
}

// postJSON sends a JSON request to the URL and returns the response body.
// Non-2xx statuses map to the provider error taxonomy; the circuit breaker
// opens after consecutive vendor failures.
func (c *Client) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodPost, url, body)
	})
}

// getJSON sends a GET request and returns the response body.
func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, http.MethodGet, url, nil)
	})
}

func (c *Client) doRequest(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	token, err := c.tokens.Token(ctx, []string{auth.ScopeCloudPlatform})
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.APIError(url, 0, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.APIError(url, resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.RateLimited("vertex", retryAfter(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.APIError(url, resp.StatusCode, string(data))
	}

	return data, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
