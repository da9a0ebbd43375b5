package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

type Flavor string

const (
	FlavorSklearn Flavor = "sklearn"
	FlavorPyTorch Flavor = "pytorch"
)

// TensorSpec describes a converter input. Shape uses -1 for dynamic dims.
type TensorSpec struct {
	Name  string  `json:"name"`
	DType string  `json:"dtype"`
	Shape []int64 `json:"shape"`
}

// Request is everything a converter needs to produce one onnx file from one
// downloaded model artifact.
type Request struct {
	Flavor      Flavor                    `json:"flavor"`
	ArtifactDir string                    `json:"artifact_dir"`
	OutputPath  string                    `json:"output_path"`
	Inputs      []TensorSpec              `json:"inputs"`
	InputNames  []string                  `json:"input_names"`
	OutputNames []string                  `json:"output_names"`
	DynamicAxes map[string]map[int]string `json:"dynamic_axes,omitempty"`
	Opset       int                       `json:"opset,omitempty"`
}

func (r Request) Validate() error {
	if r.Flavor == "" {
		return fmt.Errorf("converter request has no flavor")
	}
	if r.ArtifactDir == "" || r.OutputPath == "" {
		return fmt.Errorf("converter request needs artifact_dir and output_path")
	}
	if len(r.Inputs) == 0 {
		return fmt.Errorf("converter request has no inputs")
	}
	return nil
}

type Response struct {
	OutputPath string `json:"output_path"`
	Producer   string `json:"producer,omitempty"`
	Log        string `json:"log,omitempty"`
}

// Converter turns a native model artifact into an onnx file.
type Converter interface {
	Convert(ctx context.Context, req Request) (Response, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, req Request) (Response, error)

func (f ConverterFunc) Convert(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

func WriteRequest(path string, req Request) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding converter request: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing converter request: %w", err)
	}
	return nil
}

func ReadRequest(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("error reading converter request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("error decoding converter request: %w", err)
	}
	return req, nil
}
