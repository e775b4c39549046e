package vertex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// lyriaAPIModel is the published model ID behind the lyria-1.0 catalog name.
const lyriaAPIModel = "lyria-002"

type lyriaInstance struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type lyriaParameters struct {
	SampleCount int    `json:"sampleCount"`
	Seed        *int64 `json:"seed,omitempty"`
}

type lyriaRequest struct {
	Instances  []lyriaInstance `json:"instances"`
	Parameters lyriaParameters `json:"parameters"`
}

type lyriaPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

type lyriaResponse struct {
	Predictions []lyriaPrediction `json:"predictions"`
}

// Lyria generates instrumental music through the Lyria predict endpoint.
type Lyria struct {
	client *Client
	desc   media.ProviderDescriptor
	log    *zap.Logger
}

// NewLyria creates the Lyria provider.
func NewLyria(client *Client, log *zap.Logger) *Lyria {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lyria{
		client: client,
		desc: media.ProviderDescriptor{
			Name: ProviderName,
			Kind: media.KindMusic,
			Capabilities: []media.Capability{
				media.CapNegativePrompt,
				media.CapSeed,
				media.CapSampleCount,
			},
			Models: media.LyriaModels,
		},
		log: log.Named("lyria"),
	}
}

func (p *Lyria) Name() string                       { return ProviderName }
func (p *Lyria) Describe() media.ProviderDescriptor { return p.desc }
func (p *Lyria) Supports(c media.Capability) bool   { return p.desc.HasCapability(c) }

// GenerateMusic validates the request, calls the predict endpoint and
// decodes every returned sample.
func (p *Lyria) GenerateMusic(ctx context.Context, req *media.MusicRequest) ([]media.AudioOutput, error) {
	if err := req.Validate(&p.desc); err != nil {
		return nil, err
	}

	count := req.SampleCount
	if count == 0 {
		count = 1
	}

	body := lyriaRequest{
		Instances: []lyriaInstance{{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
		}},
		Parameters: lyriaParameters{
			SampleCount: count,
			Seed:        req.Seed,
		},
	}

	endpoint := p.client.endpoint(lyriaAPIModel, "predict")
	p.log.Info("generating music", zap.Int("sample_count", count))

	data, err := p.client.postJSON(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp lyriaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("failed to parse response: %v", err))
	}
	if len(resp.Predictions) == 0 {
		return nil, apperrors.GenerationFailed(ProviderName, "no audio returned, prompt may have been filtered")
	}

	outputs := make([]media.AudioOutput, 0, len(resp.Predictions))
	for _, pred := range resp.Predictions {
		raw, err := base64.StdEncoding.DecodeString(pred.BytesBase64Encoded)
		if err != nil {
			return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("invalid audio encoding: %v", err))
		}
		mimeType := pred.MIMEType
		if mimeType == "" {
			mimeType = "audio/wav"
		}
		outputs = append(outputs, media.AudioOutput{Data: raw, MIMEType: mimeType})
	}
	return outputs, nil
}
