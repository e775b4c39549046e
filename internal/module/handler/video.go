package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/infra/lro"
	"github.com/genmedia/server/internal/infra/task"
	"github.com/genmedia/server/internal/module/provider"
	apperrors "github.com/genmedia/server/internal/shared/errors"
	"github.com/genmedia/server/internal/storage"
	"github.com/genmedia/server/internal/utils/metrics"
)

// TaskTypeVideoGeneration is the task type background video generation runs as.
const TaskTypeVideoGeneration = "video_generation"

// GenerateVideoParams are the parameters of the video generation tool. When
// Image is set the generation is image-to-video; otherwise text-to-video.
type GenerateVideoParams struct {
	Prompt string `json:"prompt"`
	// Image is the first frame: a local path, storage URI, or raw base64.
	Image string `json:"image,omitempty"`
	// LastFrame makes the video interpolate toward a final frame.
	LastFrame       string `json:"last_frame,omitempty"`
	Model           string `json:"model,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	GenerateAudio   bool   `json:"generate_audio,omitempty"`
	Seed            *int64 `json:"seed,omitempty"`
	Provider        string `json:"provider,omitempty"`
	// OutputURI is the storage destination the vendor writes videos to.
	OutputURI string `json:"output_uri"`
}

// GenerateVideoResult is the outcome of a video generation call.
type GenerateVideoResult struct {
	Provider string              `json:"provider"`
	Videos   []media.VideoOutput `json:"videos"`
}

// VideoService is the video generation tool. Generation is asynchronous at
// the vendor: Generate submits and drives the operation poller to completion;
// StartGeneration runs the same flow as a background task.
type VideoService struct {
	registry *provider.Registry
	resolver *storage.Resolver
	poller   *lro.Poller
	tasks    *task.Manager
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewVideoService creates the video tool service and registers its background
// executor with the task manager. tasks and metrics may be nil.
func NewVideoService(registry *provider.Registry, resolver *storage.Resolver, poller *lro.Poller, tasks *task.Manager, m *metrics.Metrics, log *zap.Logger) *VideoService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &VideoService{
		registry: registry,
		resolver: resolver,
		poller:   poller,
		tasks:    tasks,
		metrics:  m,
		log:      log.Named("video"),
	}
	if tasks != nil {
		tasks.RegisterExecutor(TaskTypeVideoGeneration, s.executeGeneration)
	}
	return s
}

// Generate submits a video generation and blocks until the operation reaches
// a terminal state.
func (s *VideoService) Generate(ctx context.Context, p *GenerateVideoParams) (*GenerateVideoResult, error) {
	return s.generate(ctx, p, func(int) {})
}

// StartGeneration submits video generation as a background task and returns
// immediately. The task output carries the delivered video locations.
func (s *VideoService) StartGeneration(ctx context.Context, p *GenerateVideoParams) (*task.Task, error) {
	if s.tasks == nil {
		return nil, apperrors.InvalidInput("background generation is not enabled")
	}

	payload, err := toPayload(p)
	if err != nil {
		return nil, err
	}
	return s.tasks.Submit(ctx, &task.SubmitRequest{
		Type:    TaskTypeVideoGeneration,
		Payload: payload,
	})
}

// Task retrieves a background generation task by ID.
func (s *VideoService) Task(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	if s.tasks == nil {
		return nil, apperrors.InvalidInput("background generation is not enabled")
	}
	return s.tasks.Get(ctx, id)
}

// CancelTask abandons a background generation task. The remote operation is
// not cancelled; the vendor job runs to completion unobserved.
func (s *VideoService) CancelTask(ctx context.Context, id uuid.UUID) error {
	if s.tasks == nil {
		return apperrors.InvalidInput("background generation is not enabled")
	}
	return s.tasks.Cancel(ctx, id)
}

func (s *VideoService) generate(ctx context.Context, p *GenerateVideoParams, onProgress func(int)) (result *GenerateVideoResult, err error) {
	prov, err := s.registry.ResolveVideo(p.Provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordGeneration(media.KindVideo.String(), prov.Name(), statusLabel(err), time.Since(start))
		}
	}()

	op, err := s.submit(ctx, prov, p)
	if err != nil {
		return nil, err
	}
	onProgress(10)

	if s.metrics != nil {
		s.metrics.OperationsActive.Inc()
		defer s.metrics.OperationsActive.Dec()
	}

	videos, err := lro.Drive(ctx, s.poller, op, func(ctx context.Context) ([]media.VideoOutput, bool, error) {
		outs, done, perr := prov.Poll(ctx, op)
		s.recordPoll(prov.Name(), done, perr)
		if !done {
			// Progress grows with each poll but never claims completion.
			if pct := 10 + op.Attempts()*5; pct < 90 {
				onProgress(pct)
			} else {
				onProgress(90)
			}
		}
		return outs, done, perr
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordOperationDone(prov.Name(), op.Attempts())
		s.metrics.RecordMediaItems(media.KindVideo.String(), prov.Name(), len(videos))
	}
	s.log.Info("generated videos",
		zap.String("provider", prov.Name()),
		zap.String("operation", op.Name),
		zap.Int("attempts", op.Attempts()),
		zap.Int("count", len(videos)))

	return &GenerateVideoResult{Provider: prov.Name(), Videos: videos}, nil
}

func (s *VideoService) submit(ctx context.Context, prov provider.VideoProvider, p *GenerateVideoParams) (*lro.Operation, error) {
	if p.Image == "" {
		return prov.SubmitText(ctx, &media.VideoTextRequest{
			Prompt:          p.Prompt,
			Model:           p.Model,
			AspectRatio:     p.AspectRatio,
			DurationSeconds: p.DurationSeconds,
			GenerateAudio:   p.GenerateAudio,
			Seed:            p.Seed,
			OutputURI:       p.OutputURI,
		})
	}

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()

	image, err := s.stageImage(ctx, stage, p.Image)
	if err != nil {
		return nil, err
	}
	lastFrame := ""
	if p.LastFrame != "" {
		if lastFrame, err = s.stageImage(ctx, stage, p.LastFrame); err != nil {
			return nil, err
		}
	}

	return prov.SubmitImage(ctx, &media.VideoImageRequest{
		Image:           image,
		LastFrame:       lastFrame,
		Prompt:          p.Prompt,
		Model:           p.Model,
		AspectRatio:     p.AspectRatio,
		DurationSeconds: p.DurationSeconds,
		GenerateAudio:   p.GenerateAudio,
		Seed:            p.Seed,
		OutputURI:       p.OutputURI,
	})
}

// stageImage turns an image reference into the base64 payload providers
// expect. Local paths and storage URIs are read and encoded; anything that is
// not a readable file is passed through as raw base64.
func (s *VideoService) stageImage(ctx context.Context, stage *storage.Staging, raw string) (string, error) {
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return "", err
	}

	var path string
	if loc.IsLocal() {
		if _, statErr := os.Stat(loc.Path); statErr != nil {
			return raw, nil
		}
		path = loc.Path
	} else {
		if path, err = stage.ResolveInput(ctx, raw); err != nil {
			return "", err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.StorageFailed(raw, apperrors.OpDownload, "read image failed", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (s *VideoService) recordPoll(providerName string, done bool, err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case done && err == nil:
		s.metrics.RecordPoll(providerName, "done")
	case done || err != nil:
		s.metrics.RecordPoll(providerName, "error")
	default:
		s.metrics.RecordPoll(providerName, "pending")
	}
}

// executeGeneration is the task executor: it re-decodes the submitted payload
// and runs the synchronous generation flow under the task's context.
func (s *VideoService) executeGeneration(ctx context.Context, t *task.Task, onProgress func(int)) (map[string]any, error) {
	var params GenerateVideoParams
	if err := fromPayload(t.Input, &params); err != nil {
		return nil, fmt.Errorf("decode task payload: %w", err)
	}

	result, err := s.generate(ctx, &params, onProgress)
	if err != nil {
		return nil, err
	}
	return toPayload(result)
}

func toPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromPayload(payload map[string]any, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
