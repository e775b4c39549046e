package media

// Static model catalogs for the Google Vertex AI backends. Aliases let agents
// use short names without tracking versioned identifiers.

// ImagenModels lists the available Imagen image generation models.
var ImagenModels = []ModelInfo{
	{
		ID:              "imagen-3.0-generate-002",
		Aliases:         []string{"imagen-3", "imagen-3.0", "imagen3"},
		MaxPromptLength: 480,
		AspectRatios:    []string{"1:1", "3:4", "4:3", "9:16", "16:9"},
		MaxOutputs:      4,
	},
	{
		ID:              "imagen-3.0-fast-generate-001",
		Aliases:         []string{"imagen-3-fast", "imagen-3.0-fast"},
		MaxPromptLength: 480,
		AspectRatios:    []string{"1:1", "3:4", "4:3", "9:16", "16:9"},
		MaxOutputs:      4,
	},
	{
		ID:              "imagen-4.0-generate-preview-06-06",
		Aliases:         []string{"imagen-4", "imagen-4.0", "imagen4", "imagen-4-preview"},
		MaxPromptLength: 2000,
		AspectRatios:    []string{"1:1", "3:4", "4:3", "9:16", "16:9"},
		MaxOutputs:      4,
	},
}

// VeoModels lists the available Veo video generation models.
var VeoModels = []ModelInfo{
	{
		ID:           "veo-2.0-generate-001",
		Aliases:      []string{"veo-2", "veo-2.0", "veo2"},
		AspectRatios: []string{"16:9", "9:16"},
		Durations:    []int{4, 6, 8},
	},
	{
		ID:            "veo-3.0-generate-preview",
		Aliases:       []string{"veo-3", "veo-3.0", "veo3", "veo-3-preview"},
		AspectRatios:  []string{"16:9", "9:16"},
		Durations:     []int{4, 6, 8},
		SupportsAudio: true,
	},
}

// ChirpModels lists the available Chirp speech synthesis models.
var ChirpModels = []ModelInfo{
	{
		ID:      "chirp3-hd",
		Aliases: []string{"chirp3", "chirp-hd"},
	},
}

// LyriaModels lists the available Lyria music generation models.
var LyriaModels = []ModelInfo{
	{
		ID:         "lyria-1.0",
		Aliases:    []string{"lyria", "lyria-1", "music-generation"},
		MaxOutputs: 4,
	},
}

// DefaultImagenModel is used when an image request names no model.
const DefaultImagenModel = "imagen-4.0-generate-preview-06-06"

// DefaultVeoModel is used when a video request names no model.
const DefaultVeoModel = "veo-3.0-generate-preview"
