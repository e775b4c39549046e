package handler

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/infra/lro"
	"github.com/genmedia/server/internal/infra/task"
	"github.com/genmedia/server/internal/module/provider"
	apperrors "github.com/genmedia/server/internal/shared/errors"
	"github.com/genmedia/server/internal/storage"
)

// fastClock satisfies lro.Clock without waiting.
type fastClock struct{}

func (fastClock) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestPoller(maxAttempts int) *lro.Poller {
	return lro.NewPoller(lro.Config{
		InitialDelay: 5 * time.Second,
		Multiplier:   1.5,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  maxAttempts,
	}, nil).WithClock(fastClock{})
}

func newTestResolver(t *testing.T) *storage.Resolver {
	t.Helper()
	return storage.NewResolver(map[storage.Scheme]storage.Backend{}, t.TempDir(), zap.NewNop())
}

// --- stub providers ---

type stubImage struct {
	images  []media.ImageOutput
	err     error
	lastReq *media.ImageRequest
}

func (s *stubImage) Name() string { return "stub" }
func (s *stubImage) Describe() media.ProviderDescriptor {
	return media.ProviderDescriptor{
		Name: "stub",
		Kind: media.KindImage,
		Models: []media.ModelInfo{{ID: "stub-model", MaxOutputs: 4}},
	}
}
func (s *stubImage) Supports(media.Capability) bool { return false }
func (s *stubImage) GenerateImages(_ context.Context, req *media.ImageRequest) ([]media.ImageOutput, error) {
	s.lastReq = req
	return s.images, s.err
}

type stubVideo struct {
	pollsUntilDone int
	polls          int
	videos         []media.VideoOutput
	terminalErr    error
	lastText       *media.VideoTextRequest
	lastImage      *media.VideoImageRequest
}

func (s *stubVideo) Name() string { return "stub" }
func (s *stubVideo) Describe() media.ProviderDescriptor {
	return media.ProviderDescriptor{Name: "stub", Kind: media.KindVideo}
}
func (s *stubVideo) Supports(media.Capability) bool { return false }
func (s *stubVideo) SubmitText(_ context.Context, req *media.VideoTextRequest) (*lro.Operation, error) {
	s.lastText = req
	return lro.NewOperation("operations/stub-1"), nil
}
func (s *stubVideo) SubmitImage(_ context.Context, req *media.VideoImageRequest) (*lro.Operation, error) {
	s.lastImage = req
	return lro.NewOperation("operations/stub-1"), nil
}
func (s *stubVideo) Poll(_ context.Context, _ *lro.Operation) ([]media.VideoOutput, bool, error) {
	s.polls++
	if s.polls <= s.pollsUntilDone {
		return nil, false, nil
	}
	if s.terminalErr != nil {
		return nil, true, s.terminalErr
	}
	return s.videos, true, nil
}

type stubSpeech struct {
	clips  []media.AudioOutput
	voices []media.VoiceInfo
}

func (s *stubSpeech) Name() string { return "stub" }
func (s *stubSpeech) Describe() media.ProviderDescriptor {
	return media.ProviderDescriptor{Name: "stub", Kind: media.KindSpeech}
}
func (s *stubSpeech) Supports(media.Capability) bool { return false }
func (s *stubSpeech) Synthesize(_ context.Context, _ *media.SpeechRequest) ([]media.AudioOutput, error) {
	return s.clips, nil
}
func (s *stubSpeech) ListVoices(_ context.Context) ([]media.VoiceInfo, error) {
	return s.voices, nil
}

type stubMusic struct {
	samples []media.AudioOutput
}

func (s *stubMusic) Name() string { return "stub" }
func (s *stubMusic) Describe() media.ProviderDescriptor {
	return media.ProviderDescriptor{Name: "stub", Kind: media.KindMusic}
}
func (s *stubMusic) Supports(media.Capability) bool { return false }
func (s *stubMusic) GenerateMusic(_ context.Context, _ *media.MusicRequest) ([]media.AudioOutput, error) {
	return s.samples, nil
}

func newRegistry(t *testing.T, providers ...provider.Provider) *provider.Registry {
	t.Helper()
	r := provider.NewRegistry()
	for _, p := range providers {
		r.Register(p.Describe().Kind, p.Name(), p)
		r.SetDefault(p.Describe().Kind, p.Name())
	}
	return r
}

// --- image ---

func TestImageGenerate_InlineViaDefaultProvider(t *testing.T) {
	stub := &stubImage{images: []media.ImageOutput{{Data: []byte("png-bytes"), MIMEType: "image/png"}}}
	svc := NewImageService(newRegistry(t, stub), newTestResolver(t), nil, nil)

	result, err := svc.Generate(context.Background(), &GenerateImageParams{
		Prompt: "a red barn",
	})

	require.NoError(t, err)
	assert.Equal(t, "stub", result.Provider)
	require.Len(t, result.Images, 1)
	assert.Equal(t, []byte("png-bytes"), result.Images[0].Data)
	assert.Equal(t, "image/png", result.Images[0].MIMEType)
	assert.Empty(t, result.Images[0].Location)
	assert.Equal(t, "a red barn", stub.lastReq.Prompt)
}

func TestImageGenerate_DeliversToFilesWithSuffix(t *testing.T) {
	stub := &stubImage{images: []media.ImageOutput{
		{Data: []byte("one"), MIMEType: "image/png"},
		{Data: []byte("two"), MIMEType: "image/png"},
	}}
	svc := NewImageService(newRegistry(t, stub), newTestResolver(t), nil, nil)

	dir := t.TempDir()
	dest := filepath.Join(dir, "barn.png")
	result, err := svc.Generate(context.Background(), &GenerateImageParams{
		Prompt:     "a red barn",
		Count:      2,
		OutputFile: dest,
	})

	require.NoError(t, err)
	require.Len(t, result.Images, 2)
	assert.Equal(t, filepath.Join(dir, "barn_1.png"), result.Images[0].Location)
	assert.Equal(t, filepath.Join(dir, "barn_2.png"), result.Images[1].Location)

	data, err := os.ReadFile(result.Images[1].Location)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
}

func TestImageGenerate_UnknownProviderListsAlternatives(t *testing.T) {
	svc := NewImageService(newRegistry(t, &stubImage{}), newTestResolver(t), nil, nil)

	_, err := svc.Generate(context.Background(), &GenerateImageParams{
		Prompt:   "a red barn",
		Provider: "nope",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)
	assert.Contains(t, err.Error(), "stub")
}

// --- video ---

func TestVideoGenerate_DrivesPollerToCompletion(t *testing.T) {
	stub := &stubVideo{
		pollsUntilDone: 3,
		videos:         []media.VideoOutput{{URI: "gs://bucket/out/video.mp4", MIMEType: "video/mp4"}},
	}
	svc := NewVideoService(newRegistry(t, stub), newTestResolver(t), newTestPoller(120), nil, nil, nil)

	result, err := svc.Generate(context.Background(), &GenerateVideoParams{
		Prompt:    "waves at dusk",
		OutputURI: "gs://bucket/out/",
	})

	require.NoError(t, err)
	// Three pending polls, then the terminal one.
	assert.Equal(t, 4, stub.polls)
	require.Len(t, result.Videos, 1)
	assert.Equal(t, "gs://bucket/out/video.mp4", result.Videos[0].URI)
	assert.Equal(t, "gs://bucket/out/", stub.lastText.OutputURI)
}

func TestVideoGenerate_TimesOutAfterAttemptBudget(t *testing.T) {
	stub := &stubVideo{pollsUntilDone: 1 << 30}
	svc := NewVideoService(newRegistry(t, stub), newTestResolver(t), newTestPoller(6), nil, nil, nil)

	_, err := svc.Generate(context.Background(), &GenerateVideoParams{
		Prompt:    "waves at dusk",
		OutputURI: "gs://bucket/out/",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.Equal(t, 6, stub.polls)
}

func TestVideoGenerate_TerminalFailureSurfaces(t *testing.T) {
	stub := &stubVideo{terminalErr: apperrors.GenerationFailed("stub", "prompt rejected")}
	svc := NewVideoService(newRegistry(t, stub), newTestResolver(t), newTestPoller(120), nil, nil, nil)

	_, err := svc.Generate(context.Background(), &GenerateVideoParams{
		Prompt:    "waves at dusk",
		OutputURI: "gs://bucket/out/",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "prompt rejected")
	assert.Equal(t, 1, stub.polls)
}

func TestVideoGenerate_StagesImageFileAsBase64(t *testing.T) {
	stub := &stubVideo{videos: []media.VideoOutput{{URI: "gs://bucket/out/video.mp4"}}}
	svc := NewVideoService(newRegistry(t, stub), newTestResolver(t), newTestPoller(120), nil, nil, nil)

	imgPath := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("png-bytes"), 0o644))

	_, err := svc.Generate(context.Background(), &GenerateVideoParams{
		Prompt:    "animate this",
		Image:     imgPath,
		OutputURI: "gs://bucket/out/",
	})

	require.NoError(t, err)
	require.NotNil(t, stub.lastImage)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), stub.lastImage.Image)
}

func TestVideoGenerate_RawBase64ImagePassesThrough(t *testing.T) {
	stub := &stubVideo{videos: []media.VideoOutput{{URI: "gs://bucket/out/video.mp4"}}}
	svc := NewVideoService(newRegistry(t, stub), newTestResolver(t), newTestPoller(120), nil, nil, nil)

	raw := base64.StdEncoding.EncodeToString([]byte("inline-frame"))
	_, err := svc.Generate(context.Background(), &GenerateVideoParams{
		Prompt:    "animate this",
		Image:     raw,
		OutputURI: "gs://bucket/out/",
	})

	require.NoError(t, err)
	require.NotNil(t, stub.lastImage)
	assert.Equal(t, raw, stub.lastImage.Image)
}

func TestVideoStartGeneration_CompletesAsTask(t *testing.T) {
	stub := &stubVideo{
		pollsUntilDone: 2,
		videos:         []media.VideoOutput{{URI: "gs://bucket/out/video.mp4", MIMEType: "video/mp4"}},
	}
	manager := task.NewManager(task.NewMemoryRepository(), nil, nil)
	defer manager.Stop()

	svc := NewVideoService(newRegistry(t, stub), newTestResolver(t), newTestPoller(120), manager, nil, nil)

	submitted, err := svc.StartGeneration(context.Background(), &GenerateVideoParams{
		Prompt:    "waves at dusk",
		OutputURI: "gs://bucket/out/",
	})
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, submitted.Status)

	deadline := time.Now().Add(5 * time.Second)
	var done *task.Task
	for time.Now().Before(deadline) {
		done, err = svc.Task(context.Background(), submitted.ID)
		require.NoError(t, err)
		if done.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.NotNil(t, done)
	require.Equal(t, task.StatusCompleted, done.Status)
	videos, ok := done.Output["videos"].([]any)
	require.True(t, ok)
	require.Len(t, videos, 1)
	first, ok := videos[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gs://bucket/out/video.mp4", first["uri"])
}

func TestVideoStartGeneration_DisabledWithoutManager(t *testing.T) {
	svc := NewVideoService(newRegistry(t, &stubVideo{}), newTestResolver(t), newTestPoller(120), nil, nil, nil)

	_, err := svc.StartGeneration(context.Background(), &GenerateVideoParams{Prompt: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- speech ---

func TestSpeechSynthesize_DeliversToFile(t *testing.T) {
	stub := &stubSpeech{clips: []media.AudioOutput{{Data: []byte("wav-bytes"), MIMEType: "audio/wav", SampleRateHz: 24000}}}
	svc := NewSpeechService(newRegistry(t, stub), newTestResolver(t), nil, nil)

	dest := filepath.Join(t.TempDir(), "hello.wav")
	result, err := svc.Synthesize(context.Background(), &SynthesizeParams{
		Text:       "hello world",
		OutputFile: dest,
	})

	require.NoError(t, err)
	assert.Equal(t, dest, result.Audio.Location)
	assert.Equal(t, 24000, result.SampleRateHz)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), data)
}

func TestSpeechSynthesize_EmptyResponseIsError(t *testing.T) {
	svc := NewSpeechService(newRegistry(t, &stubSpeech{}), newTestResolver(t), nil, nil)

	_, err := svc.Synthesize(context.Background(), &SynthesizeParams{Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
}

func TestSpeechListVoices(t *testing.T) {
	stub := &stubSpeech{voices: []media.VoiceInfo{
		{Name: "en-US-Chirp3-HD-Achernar", LanguageCodes: []string{"en-US"}},
	}}
	svc := NewSpeechService(newRegistry(t, stub), newTestResolver(t), nil, nil)

	voices, err := svc.ListVoices(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "en-US-Chirp3-HD-Achernar", voices[0].Name)
}

// --- music ---

func TestMusicGenerate_MultipleSamplesInline(t *testing.T) {
	stub := &stubMusic{samples: []media.AudioOutput{
		{Data: []byte("take-1"), MIMEType: "audio/wav"},
		{Data: []byte("take-2"), MIMEType: "audio/wav"},
	}}
	svc := NewMusicService(newRegistry(t, stub), newTestResolver(t), nil, nil)

	result, err := svc.Generate(context.Background(), &GenerateMusicParams{
		Prompt:      "slow jazz",
		SampleCount: 2,
	})

	require.NoError(t, err)
	require.Len(t, result.Samples, 2)
	assert.Equal(t, []byte("take-1"), result.Samples[0].Data)
	assert.Equal(t, []byte("take-2"), result.Samples[1].Data)
}

// --- catalog ---

func TestCatalogListProviders(t *testing.T) {
	svc := NewCatalogService(newRegistry(t, &stubImage{}, &stubMusic{}))

	descs, err := svc.ListProviders(media.KindImage)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "stub", descs[0].Name)

	_, err = svc.ListProviders(media.Kind("bogus"))
	require.Error(t, err)
}

func TestCatalogListModels(t *testing.T) {
	svc := NewCatalogService(newRegistry(t, &stubImage{}))

	models, err := svc.ListModels(media.KindImage, "")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "stub-model", models[0].ID)

	_, err = svc.ListModels(media.KindImage, "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)
}

// --- destination naming ---

func TestDestinationFor(t *testing.T) {
	tests := []struct {
		name  string
		dest  string
		index int
		total int
		want  string
	}{
		{"single keeps name", "out/barn.png", 0, 1, "out/barn.png"},
		{"multiple get suffix", "out/barn.png", 1, 3, "out/barn_2.png"},
		{"remote uri", "gs://bucket/a/barn.png", 0, 2, "gs://bucket/a/barn_1.png"},
		{"no extension", "out/barn", 2, 3, "out/barn_3"},
		{"empty stays empty", "", 1, 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, destinationFor(tt.dest, tt.index, tt.total))
		})
	}
}
