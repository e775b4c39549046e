package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_IncludesEndpointAndStatus(t *testing.T) {
	err := APIError("https://us-central1-aiplatform.googleapis.com/v1/predict", 500, "internal error")

	assert.Contains(t, err.Error(), "aiplatform.googleapis.com")
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "internal error")
	assert.True(t, stderrors.Is(err, ErrAPIFailure))
}

func TestNotConfigured_ListsAlternatives(t *testing.T) {
	err := NotConfigured("image", "dalle", []string{"imagen", "gemini"})

	assert.Contains(t, err.Error(), "dalle")
	assert.Contains(t, err.Error(), "imagen")
	assert.Contains(t, err.Error(), "gemini")
	assert.True(t, IsNotConfigured(err))
}

func TestNotConfigured_EmptyRegistry(t *testing.T) {
	err := NotConfigured("music", "", nil)

	assert.Contains(t, err.Error(), "none registered")
	assert.Contains(t, err.Error(), "default")
}

func TestStorageError_IncludesLocationAndOp(t *testing.T) {
	err := StorageFailed("gs://bucket/out.mp4", OpUpload, "access denied", nil)

	assert.Contains(t, err.Error(), "gs://bucket/out.mp4")
	assert.Contains(t, err.Error(), "upload")
	assert.Contains(t, err.Error(), "access denied")
}

func TestObjectNotFound_Category(t *testing.T) {
	err := ObjectNotFound("s3://bucket/missing.png", OpDownload)
	assert.True(t, stderrors.Is(err, ErrStorageNotFound))
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Attempts: 120, Elapsed: 30 * time.Minute}

	assert.Contains(t, err.Error(), "120")
	assert.True(t, IsTimeout(err))
	assert.False(t, IsTimeout(stderrors.New("other")))
}

func TestRateLimited_CarriesRetryAfter(t *testing.T) {
	err := RateLimited("imagen", 30*time.Second)

	assert.Equal(t, 30*time.Second, err.RetryAfter)
	assert.True(t, stderrors.Is(err, ErrRateLimited))
}

func TestFeatureNotSupported(t *testing.T) {
	err := FeatureNotSupported("veo-2", "generate_audio")

	assert.Contains(t, err.Error(), "generate_audio")
	assert.True(t, stderrors.Is(err, ErrFeatureNotSupported))
}

func TestModelNotFound_ListsValidModels(t *testing.T) {
	err := ModelNotFound("imagen-9", []string{"imagen-3.0-generate-002", "imagen-4.0-generate-preview-06-06"})

	assert.Contains(t, err.Error(), "imagen-9")
	assert.Contains(t, err.Error(), "imagen-3.0-generate-002")
	assert.True(t, stderrors.Is(err, ErrModelNotFound))
}

func TestConfigError(t *testing.T) {
	err := MissingConfig("vertex.project")
	assert.Contains(t, err.Error(), "vertex.project")

	err = InvalidConfig("poller.multiplier", "must be greater than 1")
	assert.Contains(t, err.Error(), "must be greater than 1")
}

func TestInvalidInput_Category(t *testing.T) {
	err := InvalidInput("prompt cannot be empty")
	assert.True(t, IsInvalidInput(err))
}
