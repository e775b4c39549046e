// Package errors defines the typed error taxonomy shared across the server.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common error categories.
var (
	ErrNotConfigured       = errors.New("provider not configured")
	ErrModelNotFound       = errors.New("model not found")
	ErrFeatureNotSupported = errors.New("feature not supported")
	ErrRateLimited         = errors.New("rate limited")
	ErrInvalidInput        = errors.New("invalid input")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrAPIFailure          = errors.New("api error")
	ErrTimeout             = errors.New("operation timed out")
	ErrStorageNotFound     = errors.New("object not found")
	ErrInvalidPath         = errors.New("invalid storage path")
)

// ProviderError represents a failure in a media provider.
type ProviderError struct {
	// Provider is the provider name, when known.
	Provider string
	// Endpoint is the failing API endpoint, set for API errors.
	Endpoint string
	// StatusCode is the HTTP status returned by the vendor, set for API errors.
	StatusCode int
	// RetryAfter is the vendor-suggested wait, set for rate limit errors.
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Endpoint != "":
		return fmt.Sprintf("API error for %s (HTTP %d): %s", e.Endpoint, e.StatusCode, e.Message)
	case e.Provider != "":
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
	default:
		return e.Message
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotConfigured reports an unknown or unregistered provider. The registered
// alternatives are included so callers can present them to the user.
func NotConfigured(kind, name string, registered []string) *ProviderError {
	msg := fmt.Sprintf("no %s provider named %q", kind, name)
	if name == "" {
		msg = fmt.Sprintf("no default %s provider configured", kind)
	}
	if len(registered) > 0 {
		msg += fmt.Sprintf(" (registered: %s)", strings.Join(registered, ", "))
	} else {
		msg += " (none registered)"
	}
	return &ProviderError{Message: msg, Err: ErrNotConfigured}
}

// ModelNotFound reports an unknown model identifier with valid alternatives.
func ModelNotFound(model string, valid []string) *ProviderError {
	return &ProviderError{
		Message: fmt.Sprintf("unknown model %q (valid models: %s)", model, strings.Join(valid, ", ")),
		Err:     ErrModelNotFound,
	}
}

// FeatureNotSupported reports a request field the resolved provider cannot honor.
func FeatureNotSupported(provider, feature string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf("feature %s not supported", feature),
		Err:      ErrFeatureNotSupported,
	}
}

// APIError reports a vendor API failure with its endpoint and status code.
func APIError(endpoint string, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        ErrAPIFailure,
	}
}

// RateLimited reports a vendor throttle response.
func RateLimited(provider string, retryAfter time.Duration) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		RetryAfter: retryAfter,
		Message:    fmt.Sprintf("rate limited, retry after %s", retryAfter),
		Err:        ErrRateLimited,
	}
}

// InvalidInput reports a request that failed validation.
func InvalidInput(message string) *ProviderError {
	return &ProviderError{Message: message, Err: ErrInvalidInput}
}

// GenerationFailed reports a terminal generation failure from the vendor.
func GenerationFailed(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message, Err: ErrGenerationFailed}
}

// StorageOp identifies the storage operation that failed.
type StorageOp string

const (
	OpUpload   StorageOp = "upload"
	OpDownload StorageOp = "download"
	OpExists   StorageOp = "exists"
	OpURL      StorageOp = "url"
	OpDelete   StorageOp = "delete"
)

// StorageError represents a failure of a storage backend operation.
type StorageError struct {
	Location string
	Op       StorageOp
	Message  string
	Err      error
}

func (e *StorageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("storage %s failed for %s: %s", e.Op, e.Location, e.Message)
	}
	return fmt.Sprintf("storage error for %s: %s", e.Location, e.Message)
}

func (e *StorageError) Unwrap() error { return e.Err }

// InvalidLocation reports an unparseable storage location string.
func InvalidLocation(raw, reason string) *StorageError {
	return &StorageError{Location: raw, Message: reason, Err: ErrInvalidPath}
}

// StorageFailed reports a failed backend operation with its location and type.
func StorageFailed(location string, op StorageOp, message string, cause error) *StorageError {
	return &StorageError{Location: location, Op: op, Message: message, Err: cause}
}

// ObjectNotFound reports a missing remote object.
func ObjectNotFound(location string, op StorageOp) *StorageError {
	return &StorageError{Location: location, Op: op, Message: "not found", Err: ErrStorageNotFound}
}

// AuthError represents a credential or token refresh failure.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return "auth error: " + e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// AuthNotConfigured reports missing application default credentials.
func AuthNotConfigured() *AuthError {
	return &AuthError{Message: "application default credentials not configured"}
}

// RefreshFailed reports a failed token refresh.
func RefreshFailed(cause error) *AuthError {
	return &AuthError{Message: fmt.Sprintf("token refresh failed: %v", cause), Err: cause}
}

// ConfigError represents a missing or invalid configuration value.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

// MissingConfig reports a required configuration key that is not set.
func MissingConfig(key string) *ConfigError {
	return &ConfigError{Key: key, Message: "required value is not set"}
}

// InvalidConfig reports a configuration value that failed validation.
func InvalidConfig(key, reason string) *ConfigError {
	return &ConfigError{Key: key, Message: reason}
}

// TimeoutError reports an exhausted long-running-operation attempt budget.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %d attempts (%s elapsed)", e.Attempts, e.Elapsed)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// IsTimeout checks whether err is an attempt budget exhaustion.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotConfigured checks whether err is an unresolved provider error.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsInvalidInput checks whether err is a validation failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
