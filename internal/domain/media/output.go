package media

// ImageOutput is one generated image. Never mutated after creation.
type ImageOutput struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// VideoOutput is one generated video. Vendors that write directly to storage
// set URI and leave Data empty.
type VideoOutput struct {
	Data            []byte `json:"-"`
	URI             string `json:"uri,omitempty"`
	MIMEType        string `json:"mime_type"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// AudioOutput is one generated audio clip (speech or music).
type AudioOutput struct {
	Data            []byte  `json:"-"`
	MIMEType        string  `json:"mime_type"`
	SampleRateHz    int     `json:"sample_rate_hz,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// VoiceInfo describes one available synthesis voice.
type VoiceInfo struct {
	Name          string   `json:"name"`
	LanguageCodes []string `json:"language_codes"`
	Gender        string   `json:"gender,omitempty"`
}
