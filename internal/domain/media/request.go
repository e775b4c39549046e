package media

import (
	"fmt"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// ImageRequest describes an image generation task.
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Count          int    `json:"count,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
}

// VideoTextRequest describes a text-to-video generation task.
type VideoTextRequest struct {
	Prompt          string `json:"prompt"`
	Model           string `json:"model,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	GenerateAudio   bool   `json:"generate_audio,omitempty"`
	Seed            *int64 `json:"seed,omitempty"`
	// OutputURI is the storage destination the vendor writes the video to.
	OutputURI string `json:"output_uri"`
}

// VideoImageRequest describes an image-to-video generation task. When
// LastFrame is set the video interpolates between Image and LastFrame.
type VideoImageRequest struct {
	// Image is the first frame: a local path, storage URI, or raw base64.
	Image           string `json:"image"`
	LastFrame       string `json:"last_frame,omitempty"`
	Prompt          string `json:"prompt"`
	Model           string `json:"model,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	GenerateAudio   bool   `json:"generate_audio,omitempty"`
	Seed            *int64 `json:"seed,omitempty"`
	OutputURI       string `json:"output_uri"`
}

// Pronunciation is a custom pronunciation hint for speech synthesis.
type Pronunciation struct {
	Phrase   string `json:"phrase"`
	Phonetic string `json:"phonetic"`
}

// SpeechRequest describes a text-to-speech synthesis task.
type SpeechRequest struct {
	Text           string          `json:"text"`
	Voice          string          `json:"voice,omitempty"`
	LanguageCode   string          `json:"language_code,omitempty"`
	Pace           float64         `json:"pace,omitempty"`
	Pronunciations []Pronunciation `json:"pronunciations,omitempty"`
}

// MusicRequest describes a music generation task.
type MusicRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	SampleCount    int    `json:"sample_count,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
}

// Validate checks the request against the provider's descriptor. It runs
// before any network call so that unsupported features and bad parameters
// fail fast instead of being silently dropped.
func (r *ImageRequest) Validate(d *ProviderDescriptor) error {
	if r.Prompt == "" {
		return apperrors.InvalidInput("prompt cannot be empty")
	}

	model, ok := d.ResolveModel(r.Model)
	if !ok {
		return apperrors.ModelNotFound(r.Model, d.ModelIDs())
	}

	if model.MaxPromptLength > 0 && len(r.Prompt) > model.MaxPromptLength {
		return apperrors.InvalidInput(fmt.Sprintf(
			"prompt length %d exceeds maximum %d for model %s",
			len(r.Prompt), model.MaxPromptLength, model.ID))
	}

	if r.NegativePrompt != "" && !d.HasCapability(CapNegativePrompt) {
		return apperrors.FeatureNotSupported(d.Name, "negative_prompt")
	}

	if r.AspectRatio != "" {
		if !d.HasCapability(CapAspectRatio) {
			return apperrors.FeatureNotSupported(d.Name, "aspect_ratio")
		}
		if !model.SupportsAspectRatio(r.AspectRatio) {
			return apperrors.InvalidInput(fmt.Sprintf(
				"invalid aspect ratio %q for model %s (valid: %v)",
				r.AspectRatio, model.ID, model.AspectRatios))
		}
	}

	if r.Seed != nil && !d.HasCapability(CapSeed) {
		return apperrors.FeatureNotSupported(d.Name, "seed")
	}

	maxOutputs := model.MaxOutputs
	if maxOutputs == 0 {
		maxOutputs = 1
	}
	if r.Count < 0 || r.Count > maxOutputs {
		return apperrors.InvalidInput(fmt.Sprintf(
			"count must be between 0 and %d, got %d (0 means one image)", maxOutputs, r.Count))
	}

	return nil
}

// Validate checks the request against the provider's descriptor.
func (r *VideoTextRequest) Validate(d *ProviderDescriptor) error {
	if r.Prompt == "" {
		return apperrors.InvalidInput("prompt cannot be empty")
	}

	model, ok := d.ResolveModel(r.Model)
	if !ok {
		return apperrors.ModelNotFound(r.Model, d.ModelIDs())
	}

	return validateVideoParams(d, model, r.AspectRatio, r.DurationSeconds, r.GenerateAudio, r.Seed)
}

// Validate checks the request against the provider's descriptor.
func (r *VideoImageRequest) Validate(d *ProviderDescriptor) error {
	if r.Image == "" {
		return apperrors.InvalidInput("image cannot be empty")
	}

	model, ok := d.ResolveModel(r.Model)
	if !ok {
		return apperrors.ModelNotFound(r.Model, d.ModelIDs())
	}

	return validateVideoParams(d, model, r.AspectRatio, r.DurationSeconds, r.GenerateAudio, r.Seed)
}

func validateVideoParams(d *ProviderDescriptor, model *ModelInfo, aspectRatio string, duration int, audio bool, seed *int64) error {
	if aspectRatio != "" && !model.SupportsAspectRatio(aspectRatio) {
		return apperrors.InvalidInput(fmt.Sprintf(
			"invalid aspect ratio %q for model %s (valid: %v)",
			aspectRatio, model.ID, model.AspectRatios))
	}

	if duration != 0 && !model.SupportsDuration(duration) {
		return apperrors.InvalidInput(fmt.Sprintf(
			"invalid duration %ds for model %s (valid: %v)",
			duration, model.ID, model.Durations))
	}

	if audio && !model.SupportsAudio {
		return apperrors.FeatureNotSupported(d.Name, "generate_audio")
	}

	if seed != nil && !d.HasCapability(CapSeed) {
		return apperrors.FeatureNotSupported(d.Name, "seed")
	}

	return nil
}

// Validate checks the request against the provider's descriptor.
func (r *SpeechRequest) Validate(d *ProviderDescriptor) error {
	if r.Text == "" {
		return apperrors.InvalidInput("text cannot be empty")
	}
	if r.Voice != "" && !d.HasCapability(CapVoice) {
		return apperrors.FeatureNotSupported(d.Name, "voice")
	}
	if r.Pace != 0 && (r.Pace < 0.25 || r.Pace > 4.0) {
		return apperrors.InvalidInput(fmt.Sprintf("pace must be between 0.25 and 4.0, got %v", r.Pace))
	}
	return nil
}

// Validate checks the request against the provider's descriptor.
func (r *MusicRequest) Validate(d *ProviderDescriptor) error {
	if r.Prompt == "" {
		return apperrors.InvalidInput("prompt cannot be empty")
	}
	if r.NegativePrompt != "" && !d.HasCapability(CapNegativePrompt) {
		return apperrors.FeatureNotSupported(d.Name, "negative_prompt")
	}
	if r.Seed != nil && !d.HasCapability(CapSeed) {
		return apperrors.FeatureNotSupported(d.Name, "seed")
	}

	model, ok := d.ResolveModel("")
	if ok && model.MaxOutputs > 0 {
		if r.SampleCount < 0 || r.SampleCount > model.MaxOutputs {
			return apperrors.InvalidInput(fmt.Sprintf(
				"sample_count must be between 0 and %d, got %d (0 means one sample)", model.MaxOutputs, r.SampleCount))
		}
	}
	return nil
}
