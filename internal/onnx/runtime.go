package onnx

import (
	"fmt"
	"log/slog"
	"sync"

	"model-release/internal/schema"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitRuntime loads the onnxruntime shared library once per process. Callers
// own DestroyRuntime.
func InitRuntime(dylibPath string) error {
	initOnce.Do(func() {
		ort.SetSharedLibraryPath(dylibPath)
		initErr = ort.InitializeEnvironment()
		if initErr == nil {
			slog.Info("onnx runtime initialized", "dylib", dylibPath)
		}
	})
	if initErr != nil {
		return fmt.Errorf("could not init onnx runtime: %w", initErr)
	}
	return nil
}

func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Inspector reads the graph interface of an exported model file.
type Inspector interface {
	Inspect(path string) (*ModelInfo, error)
}

// StructuralInspector decodes the protobuf without loading a runtime.
type StructuralInspector struct{}

func (StructuralInspector) Inspect(path string) (*ModelInfo, error) {
	return ParseFile(path)
}

// RuntimeInspector loads the model through onnxruntime, which additionally
// rejects graphs the runtime cannot deserialize. Structural metadata (opsets,
// producer) still comes from the protobuf walk.
type RuntimeInspector struct{}

func NewRuntimeInspector(dylibPath string) (*RuntimeInspector, error) {
	if err := InitRuntime(dylibPath); err != nil {
		return nil, err
	}
	return &RuntimeInspector{}, nil
}

func (r *RuntimeInspector) Inspect(path string) (*ModelInfo, error) {
	info, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("onnx runtime could not load %s: %w", path, err)
	}

	info.Inputs = runtimeValues(inputs)
	info.Outputs = runtimeValues(outputs)
	return info, nil
}

func runtimeValues(infos []ort.InputOutputInfo) []ValueInfo {
	values := make([]ValueInfo, 0, len(infos))
	for _, i := range infos {
		shape := make(schema.Shape, 0, len(i.Dimensions))
		for _, d := range i.Dimensions {
			if d < 0 {
				shape = append(shape, schema.Dim(schema.Dynamic))
			} else {
				shape = append(shape, schema.Dim(d))
			}
		}
		values = append(values, ValueInfo{
			Name:     i.Name,
			ElemType: int32(i.DataType),
			Shape:    shape,
		})
	}
	return values
}
