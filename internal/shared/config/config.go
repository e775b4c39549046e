// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// Config holds all application configuration.
type Config struct {
	Vertex     VertexConfig     `mapstructure:"vertex"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Task       TaskConfig       `mapstructure:"task"`
	Storage    StorageConfig    `mapstructure:"storage"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// VertexConfig holds Google Cloud / Vertex AI settings.
type VertexConfig struct {
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
	Bucket   string `mapstructure:"bucket"`
}

// Endpoint returns the Vertex AI model endpoint for the given model and verb.
func (c *VertexConfig) Endpoint(model, verb string) string {
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.Location, c.Project, c.Location, model, verb,
	)
}

// ProvidersConfig holds default provider names per media kind.
type ProvidersConfig struct {
	ImageDefault  string `mapstructure:"image_default"`
	VideoDefault  string `mapstructure:"video_default"`
	SpeechDefault string `mapstructure:"speech_default"`
	MusicDefault  string `mapstructure:"music_default"`
}

// PollerConfig holds long-running-operation polling settings.
type PollerConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// TaskConfig holds async task manager settings.
type TaskConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// S3-compatible backend settings.
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	// TempDir is where remote inputs are staged for processing tools.
	TempDir string `mapstructure:"temp_dir"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
}

// BreakerConfig holds circuit breaker settings for provider calls.
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds Prometheus exposition settings. An empty address
// disables the metrics listener.
type MetricsConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from config.yaml and GENMEDIA_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/genmedia")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("GENMEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if key := os.Getenv("GENMEDIA_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}
	if project := os.Getenv("PROJECT_ID"); project != "" && cfg.Vertex.Project == "" {
		cfg.Vertex.Project = project
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required values and cross-field constraints.
func (c *Config) Validate() error {
	if c.Vertex.Project == "" {
		return apperrors.MissingConfig("vertex.project")
	}
	if c.Poller.Multiplier <= 1 {
		return apperrors.InvalidConfig("poller.multiplier", "must be greater than 1")
	}
	if c.Poller.MaxAttempts <= 0 {
		return apperrors.InvalidConfig("poller.max_attempts", "must be positive")
	}
	if c.Poller.MaxDelay < c.Poller.InitialDelay {
		return apperrors.InvalidConfig("poller.max_delay", "must be at least initial_delay")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Vertex defaults
	v.SetDefault("vertex.location", "us-central1")

	// Provider defaults
	v.SetDefault("providers.image_default", "vertex")
	v.SetDefault("providers.video_default", "vertex")
	v.SetDefault("providers.speech_default", "vertex")
	v.SetDefault("providers.music_default", "vertex")

	// Poller defaults (~30 minutes worst case)
	v.SetDefault("poller.initial_delay", 5*time.Second)
	v.SetDefault("poller.multiplier", 1.5)
	v.SetDefault("poller.max_delay", 60*time.Second)
	v.SetDefault("poller.max_attempts", 120)

	// Task defaults
	v.SetDefault("task.max_concurrent", 10)

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.temp_dir", "")

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 10)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 120*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.timeout", 60*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("metrics.namespace", "genmedia")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
