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

// ProviderName is the registry name shared by the Vertex providers.
const ProviderName = "vertex"

type imagenInstance struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio"`
	Seed        *int64 `json:"seed,omitempty"`
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

type imagenResponse struct {
	Predictions []imagenPrediction `json:"predictions"`
}

// Imagen generates images through the Imagen predict endpoint.
type Imagen struct {
	client *Client
	desc   media.ProviderDescriptor
	log    *zap.Logger
}

// NewImagen creates the Imagen provider.
func NewImagen(client *Client, log *zap.Logger) *Imagen {
	if log == nil {
		log = zap.NewNop()
	}
	return &Imagen{
		client: client,
		desc: media.ProviderDescriptor{
			Name: ProviderName,
			Kind: media.KindImage,
			Capabilities: []media.Capability{
				media.CapNegativePrompt,
				media.CapAspectRatio,
				media.CapSeed,
				media.CapSampleCount,
			},
			Models:       media.ImagenModels,
			DefaultModel: media.DefaultImagenModel,
		},
		log: log.Named("imagen"),
	}
}

func (p *Imagen) Name() string                       { return ProviderName }
func (p *Imagen) Describe() media.ProviderDescriptor { return p.desc }
func (p *Imagen) Supports(c media.Capability) bool   { return p.desc.HasCapability(c) }

// GenerateImages validates the request, calls the predict endpoint and
// decodes every returned prediction.
func (p *Imagen) GenerateImages(ctx context.Context, req *media.ImageRequest) ([]media.ImageOutput, error) {
	if err := req.Validate(&p.desc); err != nil {
		return nil, err
	}

	model, _ := p.desc.ResolveModel(req.Model)

	count := req.Count
	if count == 0 {
		count = 1
	}
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}

	body := imagenRequest{
		Instances: []imagenInstance{{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
		}},
		Parameters: imagenParameters{
			SampleCount: count,
			AspectRatio: aspectRatio,
			Seed:        req.Seed,
		},
	}

	endpoint := p.client.endpoint(model.ID, "predict")
	p.log.Info("generating images",
		zap.String("model", model.ID),
		zap.Int("count", count))

	data, err := p.client.postJSON(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp imagenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("failed to parse response: %v", err))
	}
	if len(resp.Predictions) == 0 {
		return nil, apperrors.GenerationFailed(ProviderName, "no images returned, prompt may have been filtered")
	}

	outputs := make([]media.ImageOutput, 0, len(resp.Predictions))
	for _, pred := range resp.Predictions {
		raw, err := base64.StdEncoding.DecodeString(pred.BytesBase64Encoded)
		if err != nil {
			return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("invalid image encoding: %v", err))
		}
		mimeType := pred.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		outputs = append(outputs, media.ImageOutput{Data: raw, MIMEType: mimeType})
	}
	return outputs, nil
}
