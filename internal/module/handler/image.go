package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/module/provider"
	"github.com/genmedia/server/internal/storage"
	"github.com/genmedia/server/internal/utils/metrics"
)

// GenerateImageParams are the parameters of the image generation tool.
type GenerateImageParams struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Count          int    `json:"count,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	// Provider selects a registered provider; empty uses the configured default.
	Provider string `json:"provider,omitempty"`
	// OutputFile is where images are delivered: a local path or storage URI.
	// Empty returns image bytes inline. Multiple images get a numeric suffix.
	OutputFile string `json:"output_file,omitempty"`
}

// GenerateImageResult is the outcome of an image generation call.
type GenerateImageResult struct {
	Provider string        `json:"provider"`
	Images   []MediaResult `json:"images"`
}

// ImageService is the image generation tool.
type ImageService struct {
	registry *provider.Registry
	resolver *storage.Resolver
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewImageService creates the image tool service. metrics may be nil.
func NewImageService(registry *provider.Registry, resolver *storage.Resolver, m *metrics.Metrics, log *zap.Logger) *ImageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageService{
		registry: registry,
		resolver: resolver,
		metrics:  m,
		log:      log.Named("image"),
	}
}

// Generate produces images from a text prompt and delivers them according to
// the output destination.
func (s *ImageService) Generate(ctx context.Context, p *GenerateImageParams) (result *GenerateImageResult, err error) {
	prov, err := s.registry.ResolveImage(p.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordGeneration(media.KindImage.String(), prov.Name(), statusLabel(err), time.Since(start))
		}
	}()

	req := &media.ImageRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Model:          p.Model,
		AspectRatio:    p.AspectRatio,
		Count:          p.Count,
		Seed:           p.Seed,
	}

	images, err := prov.GenerateImages(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]MediaResult, 0, len(images))
	for i, img := range images {
		dest := destinationFor(p.OutputFile, i, len(images))
		res, derr := deliver(ctx, s.resolver, img.Data, img.MIMEType, dest)
		if derr != nil {
			return nil, derr
		}
		results = append(results, res)
	}

	if s.metrics != nil {
		s.metrics.RecordMediaItems(media.KindImage.String(), prov.Name(), len(results))
	}
	s.log.Info("generated images",
		zap.String("provider", prov.Name()),
		zap.Int("count", len(results)))

	return &GenerateImageResult{Provider: prov.Name(), Images: results}, nil
}
