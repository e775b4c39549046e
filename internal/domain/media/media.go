// Package media contains the provider-agnostic request, output, and model
// types shared by all generation backends.
package media

// Kind identifies a media kind.
type Kind string

const (
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindSpeech Kind = "speech"
	KindMusic  Kind = "music"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the known media kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindImage, KindVideo, KindSpeech, KindMusic:
		return true
	default:
		return false
	}
}

// Capability represents an optional request feature a provider may support.
type Capability string

const (
	CapNegativePrompt Capability = "negative_prompt"
	CapAspectRatio    Capability = "aspect_ratio"
	CapSeed           Capability = "seed"
	CapDuration       Capability = "duration"
	CapAudioTrack     Capability = "audio_track"
	CapVoice          Capability = "voice"
	CapSampleCount    Capability = "sample_count"
)

// ModelInfo describes one model a provider exposes, with the constraints
// requests are validated against.
type ModelInfo struct {
	ID      string   `json:"id"`
	Aliases []string `json:"aliases,omitempty"`

	// MaxPromptLength bounds prompt size in characters; zero means unbounded.
	MaxPromptLength int `json:"max_prompt_length,omitempty"`
	// AspectRatios lists supported aspect ratios; empty means not applicable.
	AspectRatios []string `json:"aspect_ratios,omitempty"`
	// Durations lists supported video durations in seconds.
	Durations []int `json:"durations,omitempty"`
	// MaxOutputs bounds images or samples per request; zero means one.
	MaxOutputs int `json:"max_outputs,omitempty"`
	// SupportsAudio reports whether the model can generate an audio track.
	SupportsAudio bool `json:"supports_audio,omitempty"`
}

// Matches reports whether name is the model's ID or one of its aliases.
func (m *ModelInfo) Matches(name string) bool {
	if m.ID == name {
		return true
	}
	for _, a := range m.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

// SupportsAspectRatio checks ratio against the model's supported list.
func (m *ModelInfo) SupportsAspectRatio(ratio string) bool {
	for _, r := range m.AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}

// SupportsDuration checks seconds against the model's supported durations.
func (m *ModelInfo) SupportsDuration(seconds int) bool {
	for _, d := range m.Durations {
		if d == seconds {
			return true
		}
	}
	return false
}

// ProviderDescriptor describes a registered provider: its name, kind,
// capability set, and model list. Constructed once at startup, read-only after.
type ProviderDescriptor struct {
	Name         string       `json:"name"`
	Kind         Kind         `json:"kind"`
	Capabilities []Capability `json:"capabilities"`
	Models       []ModelInfo  `json:"models"`
	// DefaultModel is the model used when a request names none. Empty
	// means the first catalog entry.
	DefaultModel string `json:"default_model,omitempty"`
}

// HasCapability checks if the descriptor advertises a capability.
func (d *ProviderDescriptor) HasCapability(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ResolveModel finds a model by ID or alias. An empty name resolves to the
// descriptor's default model, falling back to the first catalog entry.
func (d *ProviderDescriptor) ResolveModel(name string) (*ModelInfo, bool) {
	if name == "" {
		name = d.DefaultModel
	}
	if name == "" {
		if len(d.Models) == 0 {
			return nil, false
		}
		return &d.Models[0], true
	}
	for i := range d.Models {
		if d.Models[i].Matches(name) {
			return &d.Models[i], true
		}
	}
	return nil, false
}

// ModelIDs returns the canonical IDs of all models in the descriptor.
func (d *ProviderDescriptor) ModelIDs() []string {
	ids := make([]string, len(d.Models))
	for i, m := range d.Models {
		ids[i] = m.ID
	}
	return ids
}
