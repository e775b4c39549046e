package avtool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// StreamInfo describes one stream inside a media container.
type StreamInfo struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// MediaInfo is the parsed ffprobe summary of a media file.
type MediaInfo struct {
	Format          string       `json:"format"`
	DurationSeconds float64      `json:"duration_seconds"`
	Streams         []StreamInfo `json:"streams"`
}

// ffprobe reports numbers as strings inside the JSON document.
type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type probeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type probeOutput struct {
	Format  *probeFormat  `json:"format"`
	Streams []probeStream `json:"streams"`
}

// GetMediaInfo probes a media file. The input may be a local path or a
// storage URI.
func (s *Service) GetMediaInfo(ctx context.Context, input string) (info *MediaInfo, err error) {
	start := time.Now()
	defer func() { s.record("media_info", start, err) }()

	stage := s.resolver.NewStaging()
	defer stage.Cleanup()
	localIn, err := stage.ResolveInput(ctx, input)
	if err != nil {
		return nil, err
	}

	stdout, stderr, err := s.runner.Run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		localIn,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %q: %s: %w", input, tail(stderr), err)
	}

	var probe probeOutput
	if err := json.Unmarshal(stdout, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format == nil {
		return nil, fmt.Errorf("ffprobe output missing format for %q", input)
	}

	duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)

	info = &MediaInfo{
		Format:          probe.Format.FormatName,
		DurationSeconds: duration,
		Streams:         make([]StreamInfo, 0, len(probe.Streams)),
	}
	for _, st := range probe.Streams {
		sampleRate, _ := strconv.Atoi(st.SampleRate)
		info.Streams = append(info.Streams, StreamInfo{
			Index:      st.Index,
			CodecType:  st.CodecType,
			CodecName:  st.CodecName,
			Width:      st.Width,
			Height:     st.Height,
			SampleRate: sampleRate,
			Channels:   st.Channels,
		})
	}

	s.log.Debug("probed media",
		zap.String("input", input),
		zap.Float64("duration", duration),
		zap.Int("streams", len(info.Streams)))
	return info, nil
}
