package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

const (
	RegistryMLflow = "mlflow"
	RegistryLocal  = "local"
)

type Config struct {
	RegistryBackend string `env:"REGISTRY_BACKEND" envDefault:"mlflow"`
	TrackingURI     string `env:"MLFLOW_TRACKING_URI"`
	TrackingToken   string `env:"MLFLOW_TRACKING_TOKEN"`

	ModelRepository  string `env:"MODEL_REPOSITORY" envDefault:"deployment/triton/model_repository"`
	ArtifactCacheDir string `env:"ARTIFACT_CACHE_DIR"`

	DatabaseURL string `env:"DATABASE_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	BundleBucket string `env:"BUNDLE_BUCKET"`
	BundlePrefix string `env:"BUNDLE_PREFIX" envDefault:"triton"`

	ConverterPlugin  string `env:"CONVERTER_PLUGIN" envDefault:"./bin/onnx-converter"`
	PythonExecutable string `env:"PYTHON_EXECUTABLE" envDefault:"python3"`
	ConverterScript  string `env:"CONVERTER_SCRIPT"`

	OnnxRuntimeDylib  string `env:"ONNX_RUNTIME_DYLIB"`
	StrictTensorNames bool   `env:"STRICT_TENSOR_NAMES" envDefault:"false"`

	WorkerConcurrency int    `env:"CONCURRENCY" envDefault:"1"`
	APIPort           string `env:"API_PORT" envDefault:"8001"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the configuration without validating it, for callers that
// override fields from the command line first.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.RegistryBackend {
	case RegistryMLflow:
		if c.TrackingURI == "" {
			return fmt.Errorf("MLFLOW_TRACKING_URI is required for the mlflow registry")
		}
	case RegistryLocal:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the local registry")
		}
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q, expected %q or %q", c.RegistryBackend, RegistryMLflow, RegistryLocal)
	}

	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	}

	if c.BundleBucket != "" && !c.HasS3() {
		slog.Warn("BUNDLE_BUCKET is set without S3_ENDPOINT_URL, using the default aws endpoint")
	}
	if c.S3EndpointURL != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}
	return nil
}

// HasS3 reports whether s3 access was configured explicitly.
func (c *Config) HasS3() bool {
	return c.S3EndpointURL != "" || c.S3AccessKeyID != ""
}
