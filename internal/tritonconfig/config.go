package tritonconfig

import (
	"fmt"
	"os"

	"model-release/internal/schema"
)

const (
	// PlatformONNX is the serving platform for exported artifacts.
	PlatformONNX = "onnxruntime_onnx"

	ConfigFileName = "config.pbtxt"
)

type TensorConfig struct {
	Name     string
	DataType string
	Dims     []int64
}

// ModelConfig is the declarative serving configuration of one bundle.
type ModelConfig struct {
	Name         string
	Platform     string
	MaxBatchSize int
	Inputs       []TensorConfig
	Outputs      []TensorConfig
}

// Generate builds the serving configuration for a signature. Tensor
// declarations keep the signature order.
func Generate(name, platform string, policy BatchPolicy, sig schema.Signature) ModelConfig {
	return ModelConfig{
		Name:         name,
		Platform:     platform,
		MaxBatchSize: policy.MaxBatchSize,
		Inputs:       tensorConfigs(sig.Inputs, policy),
		Outputs:      tensorConfigs(sig.Outputs, policy),
	}
}

func tensorConfigs(fields []schema.IOField, policy BatchPolicy) []TensorConfig {
	tensors := make([]TensorConfig, 0, len(fields))
	for _, f := range fields {
		tensors = append(tensors, TensorConfig{
			Name:     f.Name,
			DataType: f.DType.ServingType(),
			Dims:     policy.ServingDims(f.Shape),
		})
	}
	return tensors
}

func (c ModelConfig) Input(name string) (TensorConfig, bool) {
	return findTensor(c.Inputs, name)
}

func (c ModelConfig) Output(name string) (TensorConfig, bool) {
	return findTensor(c.Outputs, name)
}

func findTensor(tensors []TensorConfig, name string) (TensorConfig, bool) {
	for _, t := range tensors {
		if t.Name == name {
			return t, true
		}
	}
	return TensorConfig{}, false
}

func WriteFile(path string, c ModelConfig) error {
	data, err := c.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write serving config %s: %w", path, err)
	}
	return nil
}

func ReadFile(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to read serving config %s: %w", path, err)
	}
	return Parse(data)
}
