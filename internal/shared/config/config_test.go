package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Vertex: VertexConfig{Project: "my-project", Location: "us-central1"},
		Poller: PollerConfig{
			InitialDelay: 5 * time.Second,
			Multiplier:   1.5,
			MaxDelay:     60 * time.Second,
			MaxAttempts:  120,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingProject(t *testing.T) {
	cfg := validConfig()
	cfg.Vertex.Project = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vertex.project")
}

func TestValidate_BadMultiplier(t *testing.T) {
	cfg := validConfig()
	cfg.Poller.Multiplier = 1.0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiplier")
}

func TestValidate_MaxDelayBelowInitial(t *testing.T) {
	cfg := validConfig()
	cfg.Poller.MaxDelay = time.Second

	assert.Error(t, cfg.Validate())
}

func TestValidate_NonPositiveAttempts(t *testing.T) {
	cfg := validConfig()
	cfg.Poller.MaxAttempts = 0

	assert.Error(t, cfg.Validate())
}

func TestVertexEndpoint(t *testing.T) {
	cfg := VertexConfig{Project: "proj", Location: "us-central1"}

	got := cfg.Endpoint("imagen-3.0-generate-002", "predict")
	assert.Equal(t,
		"https://us-central1-aiplatform.googleapis.com/v1/projects/proj/locations/us-central1/publishers/google/models/imagen-3.0-generate-002:predict",
		got)
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("PROJECT_ID", "env-project")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-project", cfg.Vertex.Project)
	assert.Equal(t, "us-central1", cfg.Vertex.Location)
	assert.Equal(t, 5*time.Second, cfg.Poller.InitialDelay)
	assert.Equal(t, 1.5, cfg.Poller.Multiplier)
	assert.Equal(t, 60*time.Second, cfg.Poller.MaxDelay)
	assert.Equal(t, 120, cfg.Poller.MaxAttempts)
	assert.Equal(t, "vertex", cfg.Providers.ImageDefault)
	assert.Equal(t, "vertex", cfg.Providers.VideoDefault)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingProjectFails(t *testing.T) {
	t.Setenv("PROJECT_ID", "")
	t.Setenv("GENMEDIA_VERTEX_PROJECT", "")

	_, err := Load()
	assert.Error(t, err)
}
