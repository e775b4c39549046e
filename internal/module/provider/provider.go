// Package provider defines the media provider interfaces and the registry
// that resolves which provider services a request.
package provider

import (
	"context"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/infra/lro"
)

// Provider is the surface common to all media providers.
type Provider interface {
	// Name returns the registry name of the provider.
	Name() string
	// Describe returns the provider's descriptor: capabilities and models.
	Describe() media.ProviderDescriptor
	// Supports checks whether the provider advertises a capability.
	Supports(c media.Capability) bool
}

// ImageProvider generates images from text prompts.
type ImageProvider interface {
	Provider
	GenerateImages(ctx context.Context, req *media.ImageRequest) ([]media.ImageOutput, error)
}

// VideoProvider generates videos asynchronously. Submission returns an
// operation handle that the caller drives to completion with an lro.Poller,
// passing Poll as the status query.
type VideoProvider interface {
	Provider
	SubmitText(ctx context.Context, req *media.VideoTextRequest) (*lro.Operation, error)
	SubmitImage(ctx context.Context, req *media.VideoImageRequest) (*lro.Operation, error)
	Poll(ctx context.Context, op *lro.Operation) (outputs []media.VideoOutput, done bool, err error)
}

// SpeechProvider synthesizes speech from text.
type SpeechProvider interface {
	Provider
	Synthesize(ctx context.Context, req *media.SpeechRequest) ([]media.AudioOutput, error)
	ListVoices(ctx context.Context) ([]media.VoiceInfo, error)
}

// MusicProvider generates music from text prompts.
type MusicProvider interface {
	Provider
	GenerateMusic(ctx context.Context, req *media.MusicRequest) ([]media.AudioOutput, error)
}
