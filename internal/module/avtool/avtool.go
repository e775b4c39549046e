// Package avtool wraps ffmpeg and ffprobe as a media processing service.
// All codec work happens in the external binaries; this package builds
// arguments, stages inputs and delivers outputs.
package avtool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/genmedia/server/internal/shared/errors"
	"github.com/genmedia/server/internal/storage"
	"github.com/genmedia/server/internal/utils/metrics"
)

// Runner executes an external command. The default implementation shells
// out; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Service exposes the ffmpeg operations. Inputs may be local paths or
// storage URIs; outputs land wherever the destination string points.
type Service struct {
	runner   Runner
	resolver *storage.Resolver
	tempDir  string
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewService creates the media processing service. A nil runner uses
// os/exec.
func NewService(runner Runner, resolver *storage.Resolver, tempDir string, log *zap.Logger) *Service {
	if runner == nil {
		runner = ExecRunner{}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		runner:   runner,
		resolver: resolver,
		tempDir:  tempDir,
		log:      log.Named("avtool"),
	}
}

// WithMetrics attaches operation metrics. Optional.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) record(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordMediaOp(op, status, time.Since(start))
}

func (s *Service) tempOutput(ext string) string {
	return filepath.Join(s.tempDir, uuid.NewString()+"."+strings.TrimPrefix(ext, "."))
}

// outputExt picks the scratch file extension from the destination path.
func outputExt(destination, fallback string) string {
	if ext := strings.TrimPrefix(filepath.Ext(destination), "."); ext != "" {
		return ext
	}
	return fallback
}

// runFFmpeg invokes ffmpeg with -y prepended so scratch outputs overwrite.
// Failures carry the stderr tail, which is where ffmpeg explains itself.
func (s *Service) runFFmpeg(ctx context.Context, args ...string) error {
	full := append([]string{"-y"}, args...)
	s.log.Debug("running ffmpeg", zap.Strings("args", full))

	_, stderr, err := s.runner.Run(ctx, "ffmpeg", full...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %s: %w", tail(stderr), err)
	}
	return nil
}

func tail(b []byte) string {
	const max = 2048
	if len(b) > max {
		b = b[len(b)-max:]
	}
	return strings.TrimSpace(string(b))
}

// deliver sends a scratch output to its destination and removes the scratch
// file.
func (s *Service) deliver(ctx context.Context, tempOutput, destination string) (string, error) {
	defer os.Remove(tempOutput)
	return s.resolver.HandleOutput(ctx, tempOutput, destination)
}

// ConvertAudio converts an audio file to MP3 at the given bitrate.
func (s *Service) ConvertAudio(ctx context.Context, input, output, bitrate string) (result string, err error) {
	start := time.Now()
	defer func() { s.record("convert_audio", start, err) }()

	if bitrate == "" {
		bitrate = "192k"
	}

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localIn, err := stage.ResolveInput(ctx, input)
	if err != nil {
		return "", err
	}

	tempOut := s.tempOutput("mp3")
	if err := s.runFFmpeg(ctx,
		"-i", localIn,
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		tempOut,
	); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("converted audio", zap.String("output", result))
	return result, nil
}

// VideoToGIF converts a section of a video to a GIF. Width 0 keeps the
// source width; fps 0 defaults to 10.
func (s *Service) VideoToGIF(ctx context.Context, input, output string, fps, width int, startTime, duration float64) (result string, err error) {
	start := time.Now()
	defer func() { s.record("video_to_gif", start, err) }()

	if fps == 0 {
		fps = 10
	}

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localIn, err := stage.ResolveInput(ctx, input)
	if err != nil {
		return "", err
	}

	filters := []string{fmt.Sprintf("fps=%d", fps)}
	if width > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:-1:flags=lanczos", width))
	}

	var args []string
	if startTime > 0 {
		args = append(args, "-ss", fmt.Sprintf("%g", startTime))
	}
	args = append(args, "-i", localIn)
	if duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%g", duration))
	}
	tempOut := s.tempOutput("gif")
	args = append(args, "-vf", strings.Join(filters, ","), tempOut)

	if err := s.runFFmpeg(ctx, args...); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("converted video to gif", zap.String("output", result))
	return result, nil
}

// CombineAudioVideo muxes an audio track onto a video, re-encoding audio to
// AAC and copying the video stream.
func (s *Service) CombineAudioVideo(ctx context.Context, videoInput, audioInput, output string) (result string, err error) {
	start := time.Now()
	defer func() { s.record("combine_audio_video", start, err) }()

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localVideo, err := stage.ResolveInput(ctx, videoInput)
	if err != nil {
		return "", err
	}
	localAudio, err := stage.ResolveInput(ctx, audioInput)
	if err != nil {
		return "", err
	}

	tempOut := s.tempOutput(outputExt(output, "mp4"))
	if err := s.runFFmpeg(ctx,
		"-i", localVideo,
		"-i", localAudio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		tempOut,
	); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("combined audio and video", zap.String("output", result))
	return result, nil
}

// OverlayImage composites an image onto a video at a pixel position. Scale
// multiplies the image size; zero keeps it as is. startTime and duration
// window when the overlay is visible: duration 0 keeps it to the end.
func (s *Service) OverlayImage(ctx context.Context, videoInput, imageInput, output string, x, y int, scale, startTime, duration float64) (result string, err error) {
	start := time.Now()
	defer func() { s.record("overlay_image", start, err) }()

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localVideo, err := stage.ResolveInput(ctx, videoInput)
	if err != nil {
		return "", err
	}
	localImage, err := stage.ResolveInput(ctx, imageInput)
	if err != nil {
		return "", err
	}

	var filters []string
	imgRef := "[1:v]"
	if scale > 0 {
		filters = append(filters, fmt.Sprintf("[1:v]scale=iw*%g:ih*%g[img]", scale, scale))
		imgRef = "[img]"
	}
	overlay := fmt.Sprintf("[0:v]%soverlay=%d:%d", imgRef, x, y)
	if startTime > 0 || duration > 0 {
		if duration > 0 {
			overlay += fmt.Sprintf(":enable='between(t,%g,%g)'", startTime, startTime+duration)
		} else {
			overlay += fmt.Sprintf(":enable='gte(t,%g)'", startTime)
		}
	}
	filters = append(filters, overlay)

	tempOut := s.tempOutput(outputExt(output, "mp4"))
	if err := s.runFFmpeg(ctx,
		"-i", localVideo,
		"-i", localImage,
		"-filter_complex", strings.Join(filters, ";"),
		"-c:a", "copy",
		tempOut,
	); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("overlaid image on video", zap.String("output", result))
	return result, nil
}

// AudioLayer is one input to LayerAudio: a source plus where it starts in
// the mix and how loud it plays. Volume 0 means unchanged.
type AudioLayer struct {
	Path          string  `json:"path"`
	OffsetSeconds float64 `json:"offset_seconds,omitempty"`
	Volume        float64 `json:"volume,omitempty"`
}

// LayerAudio mixes audio files into a single track with amix. The result
// runs as long as the longest layer.
func (s *Service) LayerAudio(ctx context.Context, layers []AudioLayer, output string) (result string, err error) {
	start := time.Now()
	defer func() { s.record("layer_audio", start, err) }()

	if len(layers) == 0 {
		return "", apperrors.InvalidInput("at least one audio layer is required")
	}

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()

	var args []string
	for _, layer := range layers {
		local, err := stage.ResolveInput(ctx, layer.Path)
		if err != nil {
			return "", err
		}
		args = append(args, "-i", local)
	}

	var filters []string
	var mixRefs strings.Builder
	for i, layer := range layers {
		volume := layer.Volume
		if volume == 0 {
			volume = 1
		}
		var chain []string
		if layer.OffsetSeconds > 0 {
			delayMS := int64(layer.OffsetSeconds * 1000)
			chain = append(chain, fmt.Sprintf("adelay=%d|%d", delayMS, delayMS))
		}
		if volume != 1 {
			chain = append(chain, fmt.Sprintf("volume=%g", volume))
		}
		if len(chain) == 0 {
			chain = append(chain, "anull")
		}
		filters = append(filters, fmt.Sprintf("[%d:a]%s[a%d]", i, strings.Join(chain, ","), i))
		fmt.Fprintf(&mixRefs, "[a%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=longest", mixRefs.String(), len(layers)))

	tempOut := s.tempOutput(outputExt(output, "wav"))
	args = append(args, "-filter_complex", strings.Join(filters, ";"), tempOut)

	if err := s.runFFmpeg(ctx, args...); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("layered audio",
		zap.Int("layers", len(layers)),
		zap.String("output", result))
	return result, nil
}

// Concat joins media files with the concat demuxer, stream-copying.
func (s *Service) Concat(ctx context.Context, inputs []string, output string) (result string, err error) {
	start := time.Now()
	defer func() { s.record("concat", start, err) }()

	if len(inputs) == 0 {
		return "", apperrors.InvalidInput("at least one input file is required")
	}

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localInputs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		local, err := stage.ResolveInput(ctx, input)
		if err != nil {
			return "", err
		}
		localInputs = append(localInputs, local)
	}

	var list strings.Builder
	for _, p := range localInputs {
		fmt.Fprintf(&list, "file '%s'\n", p)
	}
	listFile := filepath.Join(s.tempDir, uuid.NewString()+"_concat.txt")
	if err := os.WriteFile(listFile, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	tempOut := s.tempOutput(outputExt(output, "mp4"))
	if err := s.runFFmpeg(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		tempOut,
	); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("concatenated media files",
		zap.Int("count", len(inputs)),
		zap.String("output", result))
	return result, nil
}

// AdjustVolume scales the audio level. Volume accepts a non-negative
// multiplier ("0.5", "2.0") or a dB string ("-3dB", "+6dB").
func (s *Service) AdjustVolume(ctx context.Context, input, output, volume string) (result string, err error) {
	start := time.Now()
	defer func() { s.record("adjust_volume", start, err) }()

	vol, err := ParseVolume(volume)
	if err != nil {
		return "", err
	}

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localIn, err := stage.ResolveInput(ctx, input)
	if err != nil {
		return "", err
	}

	tempOut := s.tempOutput(outputExt(output, "wav"))
	if err := s.runFFmpeg(ctx,
		"-i", localIn,
		"-af", "volume="+vol.FilterValue(),
		tempOut,
	); err != nil {
		return "", err
	}

	result, err = s.deliver(ctx, tempOut, output)
	if err != nil {
		return "", err
	}
	s.log.Info("adjusted volume",
		zap.String("volume", vol.FilterValue()),
		zap.String("output", result))
	return result, nil
}
