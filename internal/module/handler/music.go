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

// GenerateMusicParams are the parameters of the music generation tool.
type GenerateMusicParams struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	SampleCount    int    `json:"sample_count,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	Provider       string `json:"provider,omitempty"`
	OutputFile     string `json:"output_file,omitempty"`
}

// GenerateMusicResult is the outcome of a music generation call.
type GenerateMusicResult struct {
	Provider string        `json:"provider"`
	Samples  []MediaResult `json:"samples"`
}

// MusicService is the music generation tool.
type MusicService struct {
	registry *provider.Registry
	resolver *storage.Resolver
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewMusicService creates the music tool service. metrics may be nil.
func NewMusicService(registry *provider.Registry, resolver *storage.Resolver, m *metrics.Metrics, log *zap.Logger) *MusicService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MusicService{
		registry: registry,
		resolver: resolver,
		metrics:  m,
		log:      log.Named("music"),
	}
}

// Generate produces music samples from a text prompt.
func (s *MusicService) Generate(ctx context.Context, p *GenerateMusicParams) (result *GenerateMusicResult, err error) {
	prov, err := s.registry.ResolveMusic(p.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordGeneration(media.KindMusic.String(), prov.Name(), statusLabel(err), time.Since(start))
		}
	}()

	req := &media.MusicRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		SampleCount:    p.SampleCount,
		Seed:           p.Seed,
	}

	samples, err := prov.GenerateMusic(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]MediaResult, 0, len(samples))
	for i, sample := range samples {
		dest := destinationFor(p.OutputFile, i, len(samples))
		res, derr := deliver(ctx, s.resolver, sample.Data, sample.MIMEType, dest)
		if derr != nil {
			return nil, derr
		}
		results = append(results, res)
	}

	if s.metrics != nil {
		s.metrics.RecordMediaItems(media.KindMusic.String(), prov.Name(), len(results))
	}
	s.log.Info("generated music",
		zap.String("provider", prov.Name()),
		zap.Int("samples", len(results)))

	return &GenerateMusicResult{Provider: prov.Name(), Samples: results}, nil
}
