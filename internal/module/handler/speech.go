package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/module/provider"
	apperrors "github.com/genmedia/server/internal/shared/errors"
	"github.com/genmedia/server/internal/storage"
	"github.com/genmedia/server/internal/utils/metrics"
)

// SynthesizeParams are the parameters of the speech synthesis tool.
type SynthesizeParams struct {
	Text           string                `json:"text"`
	Voice          string                `json:"voice,omitempty"`
	LanguageCode   string                `json:"language_code,omitempty"`
	Pace           float64               `json:"pace,omitempty"`
	Pronunciations []media.Pronunciation `json:"pronunciations,omitempty"`
	Provider       string                `json:"provider,omitempty"`
	OutputFile     string                `json:"output_file,omitempty"`
}

// SynthesizeResult is the outcome of a speech synthesis call.
type SynthesizeResult struct {
	Provider     string      `json:"provider"`
	Audio        MediaResult `json:"audio"`
	SampleRateHz int         `json:"sample_rate_hz,omitempty"`
}

// SpeechService is the speech synthesis tool.
type SpeechService struct {
	registry *provider.Registry
	resolver *storage.Resolver
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewSpeechService creates the speech tool service. metrics may be nil.
func NewSpeechService(registry *provider.Registry, resolver *storage.Resolver, m *metrics.Metrics, log *zap.Logger) *SpeechService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SpeechService{
		registry: registry,
		resolver: resolver,
		metrics:  m,
		log:      log.Named("speech"),
	}
}

// Synthesize converts text to speech and delivers the audio.
func (s *SpeechService) Synthesize(ctx context.Context, p *SynthesizeParams) (result *SynthesizeResult, err error) {
	prov, err := s.registry.ResolveSpeech(p.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordGeneration(media.KindSpeech.String(), prov.Name(), statusLabel(err), time.Since(start))
		}
	}()

	req := &media.SpeechRequest{
		Text:           p.Text,
		Voice:          p.Voice,
		LanguageCode:   p.LanguageCode,
		Pace:           p.Pace,
		Pronunciations: p.Pronunciations,
	}

	clips, err := prov.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, apperrors.GenerationFailed(prov.Name(), "synthesis returned no audio")
	}

	clip := clips[0]
	res, err := deliver(ctx, s.resolver, clip.Data, clip.MIMEType, p.OutputFile)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMediaItems(media.KindSpeech.String(), prov.Name(), 1)
	}
	s.log.Info("synthesized speech",
		zap.String("provider", prov.Name()),
		zap.String("voice", p.Voice))

	return &SynthesizeResult{
		Provider:     prov.Name(),
		Audio:        res,
		SampleRateHz: clip.SampleRateHz,
	}, nil
}

// ListVoices returns the voices the resolved speech provider offers.
func (s *SpeechService) ListVoices(ctx context.Context, providerName string) ([]media.VoiceInfo, error) {
	prov, err := s.registry.ResolveSpeech(providerName)
	if err != nil {
		return nil, err
	}
	return prov.ListVoices(ctx)
}
