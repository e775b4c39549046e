package vertex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

const (
	ttsBaseURL = "https://texttospeech.googleapis.com/v1"

	// DefaultVoice is used when the request names no voice.
	DefaultVoice        = "en-US-Chirp3-HD-Achernar"
	defaultLanguageCode = "en-US"
)

type ttsInput struct {
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type ttsVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type ttsAudioConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SpeakingRate    float64 `json:"speakingRate,omitempty"`
	SampleRateHertz int     `json:"sampleRateHertz,omitempty"`
}

type ttsRequest struct {
	Input       ttsInput       `json:"input"`
	Voice       ttsVoice       `json:"voice"`
	AudioConfig ttsAudioConfig `json:"audioConfig"`
}

type ttsResponse struct {
	AudioContent string `json:"audioContent"`
}

type ttsVoiceInfo struct {
	Name                   string   `json:"name"`
	LanguageCodes          []string `json:"languageCodes"`
	SSMLGender             string   `json:"ssmlGender"`
	NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
}

type ttsVoicesResponse struct {
	Voices []ttsVoiceInfo `json:"voices"`
}

// Chirp synthesizes speech through the Cloud TTS API with Chirp3-HD voices.
type Chirp struct {
	client  *Client
	desc    media.ProviderDescriptor
	baseURL string
	log     *zap.Logger
}

// NewChirp creates the Chirp provider.
func NewChirp(client *Client, log *zap.Logger) *Chirp {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chirp{
		client: client,
		desc: media.ProviderDescriptor{
			Name: ProviderName,
			Kind: media.KindSpeech,
			Capabilities: []media.Capability{
				media.CapVoice,
			},
			Models: media.ChirpModels,
		},
		baseURL: ttsBaseURL,
		log:     log.Named("chirp"),
	}
}

// WithBaseURL points the provider at a different TTS host, for tests.
func (p *Chirp) WithBaseURL(baseURL string) *Chirp {
	p.baseURL = baseURL
	return p
}

func (p *Chirp) Name() string                       { return ProviderName }
func (p *Chirp) Describe() media.ProviderDescriptor { return p.desc }
func (p *Chirp) Supports(c media.Capability) bool   { return p.desc.HasCapability(c) }

// buildSSML substitutes phoneme hints into the text and wraps it in a speak
// element.
func buildSSML(text string, pronunciations []media.Pronunciation) string {
	for _, pron := range pronunciations {
		phoneme := fmt.Sprintf(`<phoneme alphabet="ipa" ph="%s">%s</phoneme>`, pron.Phonetic, pron.Phrase)
		text = strings.ReplaceAll(text, pron.Phrase, phoneme)
	}
	return "<speak>" + text + "</speak>"
}

// Synthesize converts text to speech and returns the decoded audio.
func (p *Chirp) Synthesize(ctx context.Context, req *media.SpeechRequest) ([]media.AudioOutput, error) {
	if err := req.Validate(&p.desc); err != nil {
		return nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	language := req.LanguageCode
	if language == "" {
		language = defaultLanguageCode
	}

	input := ttsInput{Text: req.Text}
	if len(req.Pronunciations) > 0 {
		input = ttsInput{SSML: buildSSML(req.Text, req.Pronunciations)}
	}

	body := ttsRequest{
		Input: input,
		Voice: ttsVoice{LanguageCode: language, Name: voice},
		AudioConfig: ttsAudioConfig{
			AudioEncoding:   "LINEAR16",
			SpeakingRate:    req.Pace,
			SampleRateHertz: 24000,
		},
	}

	endpoint := p.baseURL + "/text:synthesize"
	p.log.Info("synthesizing speech", zap.String("voice", voice))

	data, err := p.client.postJSON(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp ttsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("failed to parse response: %v", err))
	}
	if resp.AudioContent == "" {
		return nil, apperrors.APIError(endpoint, 200, "no audio content returned")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("invalid audio encoding: %v", err))
	}

	return []media.AudioOutput{{
		Data:         raw,
		MIMEType:     "audio/wav",
		SampleRateHz: 24000,
	}}, nil
}

// ListVoices returns the available Chirp3-HD voices.
func (p *Chirp) ListVoices(ctx context.Context) ([]media.VoiceInfo, error) {
	endpoint := p.baseURL + "/voices"

	data, err := p.client.getJSON(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp ttsVoicesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.APIError(endpoint, 200, fmt.Sprintf("failed to parse response: %v", err))
	}

	voices := make([]media.VoiceInfo, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		if !strings.Contains(v.Name, "Chirp3-HD") {
			continue
		}
		voices = append(voices, media.VoiceInfo{
			Name:          v.Name,
			LanguageCodes: v.LanguageCodes,
			Gender:        v.SSMLGender,
		})
	}
	return voices, nil
}
