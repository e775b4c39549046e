package vertex

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/infra/lro"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

type veoImageInput struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type veoTextInstance struct {
	Prompt string `json:"prompt"`
}

type veoImageInstance struct {
	Prompt string        `json:"prompt"`
	Image  veoImageInput `json:"image"`
}

type veoParameters struct {
	AspectRatio     string         `json:"aspectRatio,omitempty"`
	StorageURI      string         `json:"storageUri"`
	DurationSeconds int            `json:"durationSeconds,omitempty"`
	GenerateAudio   *bool          `json:"generateAudio,omitempty"`
	Seed            *int64         `json:"seed,omitempty"`
	LastFrame       *veoImageInput `json:"lastFrame,omitempty"`
}

type veoSubmitRequest[I any] struct {
	Instances  []I           `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoSubmitResponse struct {
	Name string `json:"name"`
}

type fetchOperationRequest struct {
	OperationName string `json:"operationName"`
}

type veoOperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type veoVideo struct {
	GCSURI   string `json:"gcsUri"`
	MIMEType string `json:"mimeType"`
}

type veoOperationResult struct {
	Videos                []veoVideo `json:"videos"`
	RAIMediaFilteredCount int        `json:"raiMediaFilteredCount"`
}

type veoOperationStatus struct {
	Done     bool                `json:"done"`
	Error    *veoOperationError  `json:"error"`
	Response *veoOperationResult `json:"response"`
}

// Veo generates videos through the predictLongRunning endpoint. Submission
// returns an operation handle carrying the model it was submitted against,
// since the fetchPredictOperation status endpoint is model-scoped.
type Veo struct {
	client *Client
	desc   media.ProviderDescriptor
	log    *zap.Logger
}

// NewVeo creates the Veo provider.
func NewVeo(client *Client, log *zap.Logger) *Veo {
	if log == nil {
		log = zap.NewNop()
	}
	return &Veo{
		client: client,
		desc: media.ProviderDescriptor{
			Name: ProviderName,
			Kind: media.KindVideo,
			Capabilities: []media.Capability{
				media.CapAspectRatio,
				media.CapSeed,
				media.CapDuration,
				media.CapAudioTrack,
			},
			Models:       media.VeoModels,
			DefaultModel: media.DefaultVeoModel,
		},
		log: log.Named("veo"),
	}
}

func (p *Veo) Name() string                       { return ProviderName }
func (p *Veo) Describe() media.ProviderDescriptor { return p.desc }
func (p *Veo) Supports(c media.Capability) bool   { return p.desc.HasCapability(c) }

// SubmitText starts a text-to-video generation.
func (p *Veo) SubmitText(ctx context.Context, req *media.VideoTextRequest) (*lro.Operation, error) {
	if err := req.Validate(&p.desc); err != nil {
		return nil, err
	}
	if req.OutputURI == "" {
		return nil, apperrors.InvalidInput("output_uri is required, videos are written directly to storage")
	}

	model, _ := p.desc.ResolveModel(req.Model)

	var audio *bool
	if req.GenerateAudio {
		audio = &req.GenerateAudio
	}
	body := veoSubmitRequest[veoTextInstance]{
		Instances: []veoTextInstance{{Prompt: req.Prompt}},
		Parameters: veoParameters{
			AspectRatio:     req.AspectRatio,
			StorageURI:      req.OutputURI,
			DurationSeconds: req.DurationSeconds,
			GenerateAudio:   audio,
			Seed:            req.Seed,
		},
	}

	return p.submit(ctx, model.ID, body)
}

// SubmitImage starts an image-to-video generation. Image and LastFrame must
// already be base64-encoded frame bytes; the handler layer stages files and
// remote objects before submission.
func (p *Veo) SubmitImage(ctx context.Context, req *media.VideoImageRequest) (*lro.Operation, error) {
	if err := req.Validate(&p.desc); err != nil {
		return nil, err
	}
	if req.OutputURI == "" {
		return nil, apperrors.InvalidInput("output_uri is required, videos are written directly to storage")
	}

	model, _ := p.desc.ResolveModel(req.Model)

	var audio *bool
	if req.GenerateAudio {
		audio = &req.GenerateAudio
	}
	params := veoParameters{
		AspectRatio:     req.AspectRatio,
		StorageURI:      req.OutputURI,
		DurationSeconds: req.DurationSeconds,
		GenerateAudio:   audio,
		Seed:            req.Seed,
	}
	if req.LastFrame != "" {
		params.LastFrame = &veoImageInput{BytesBase64Encoded: req.LastFrame}
	}

	body := veoSubmitRequest[veoImageInstance]{
		Instances: []veoImageInstance{{
			Prompt: req.Prompt,
			Image:  veoImageInput{BytesBase64Encoded: req.Image},
		}},
		Parameters: params,
	}

	return p.submit(ctx, model.ID, body)
}

func (p *Veo) submit(ctx context.Context, modelID string, body any) (*lro.Operation, error) {
	endpoint := p.client.endpoint(modelID, "predictLongRunning")

	data, err := p.client.postJSON(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp veoSubmitResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("failed to parse response: %v", err))
	}
	if resp.Name == "" {
		return nil, apperrors.APIError(endpoint, 200, "no operation name returned")
	}

	p.log.Info("started video generation",
		zap.String("model", modelID),
		zap.String("operation", resp.Name))
	op := lro.NewOperation(resp.Name)
	op.Model = modelID
	return op, nil
}

// Poll fetches the operation status once. A vendor-reported operation error
// is terminal; outputs are the generated video locations.
func (p *Veo) Poll(ctx context.Context, op *lro.Operation) ([]media.VideoOutput, bool, error) {
	if op.Model == "" {
		return nil, false, apperrors.InvalidInput("operation carries no model: " + op.Name)
	}

	endpoint := p.client.endpoint(op.Model, "fetchPredictOperation")
	data, err := p.client.postJSON(ctx, endpoint, fetchOperationRequest{OperationName: op.Name})
	if err != nil {
		return nil, false, err
	}

	var status veoOperationStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false, apperrors.APIError(endpoint, 200, fmt.Sprintf("failed to parse response: %v", err))
	}

	if !status.Done {
		return nil, false, nil
	}

	if status.Error != nil {
		return nil, true, apperrors.GenerationFailed(ProviderName,
			fmt.Sprintf("operation failed with code %d: %s", status.Error.Code, status.Error.Message))
	}
	if status.Response == nil || len(status.Response.Videos) == 0 {
		if status.Response != nil && status.Response.RAIMediaFilteredCount > 0 {
			return nil, true, apperrors.GenerationFailed(ProviderName,
				fmt.Sprintf("%d videos filtered by safety policies", status.Response.RAIMediaFilteredCount))
		}
		return nil, true, apperrors.GenerationFailed(ProviderName, "no videos returned")
	}

	outputs := make([]media.VideoOutput, 0, len(status.Response.Videos))
	for _, v := range status.Response.Videos {
		mimeType := v.MIMEType
		if mimeType == "" {
			mimeType = "video/mp4"
		}
		outputs = append(outputs, media.VideoOutput{URI: v.GCSURI, MIMEType: mimeType})
	}
	return outputs, true, nil
}
