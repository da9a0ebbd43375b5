package export

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"model-release/internal/convert"
	"model-release/internal/release"
	"model-release/internal/schema"
)

const TorchOpset = 17

// Exporter translates a signature into a conversion request for one flavor.
type Exporter interface {
	Flavor() convert.Flavor
	BuildRequest(artifactDir, outputPath string, sig schema.Signature) (convert.Request, error)
}

type Result struct {
	Flavor     convert.Flavor
	OutputPath string
	Request    convert.Request
	Producer   string
	Duration   time.Duration
}

// Export builds the request for exp and runs it through conv. The converted
// file must exist at outputPath afterwards.
func Export(ctx context.Context, conv convert.Converter, exp Exporter, artifactDir, outputPath string, sig schema.Signature) (*Result, error) {
	req, err := exp.BuildRequest(artifactDir, outputPath, sig)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := conv.Convert(ctx, req)
	if err != nil {
		return nil, release.ExportErrorf("%s conversion failed: %w", exp.Flavor(), err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, release.ExportErrorf("%s conversion produced no file at %s", exp.Flavor(), outputPath)
		}
		return nil, release.ExportErrorf("error checking converted file: %w", err)
	}

	result := &Result{
		Flavor:     exp.Flavor(),
		OutputPath: outputPath,
		Request:    req,
		Producer:   resp.Producer,
		Duration:   time.Since(start),
	}
	slog.Info("artifact exported", "flavor", result.Flavor, "output", outputPath, "duration", result.Duration)
	return result, nil
}

// SklearnExporter produces a single flat float input named "input".
type SklearnExporter struct{}

func (SklearnExporter) Flavor() convert.Flavor {
	return convert.FlavorSklearn
}

func (e SklearnExporter) BuildRequest(artifactDir, outputPath string, sig schema.Signature) (convert.Request, error) {
	if len(sig.Inputs) == 0 {
		return convert.Request{}, release.SchemaErrorf("sklearn export requires at least one signature input")
	}

	features := int64(len(sig.Inputs))
	if first := sig.Inputs[0]; first.HasShape() {
		if last := first.Shape[len(first.Shape)-1]; !last.IsDynamic() {
			features = int64(last)
		}
	}

	return convert.Request{
		Flavor:      e.Flavor(),
		ArtifactDir: artifactDir,
		OutputPath:  outputPath,
		Inputs: []convert.TensorSpec{{
			Name:  "input",
			DType: schema.DTypeFloat32.String(),
			Shape: []int64{schema.Dynamic, features},
		}},
		InputNames: []string{"input"},
	}, nil
}

// PyTorchExporter traces with a placeholder of the first input's shape and
// exports with a dynamic leading dimension.
type PyTorchExporter struct{}

func (PyTorchExporter) Flavor() convert.Flavor {
	return convert.FlavorPyTorch
}

func (e PyTorchExporter) BuildRequest(artifactDir, outputPath string, sig schema.Signature) (convert.Request, error) {
	if len(sig.Inputs) == 0 || !sig.Inputs[0].HasShape() {
		return convert.Request{}, release.SchemaErrorf("pytorch export requires a tensor input with an explicit shape")
	}
	first := sig.Inputs[0]

	shape := make([]int64, 0, len(first.Shape))
	for _, d := range first.Shape {
		if d.IsDynamic() {
			shape = append(shape, 1)
		} else {
			shape = append(shape, int64(d))
		}
	}

	dtype := first.DType
	if dtype == schema.DTypeUnknown {
		dtype = schema.DefaultDType
	}

	return convert.Request{
		Flavor:      e.Flavor(),
		ArtifactDir: artifactDir,
		OutputPath:  outputPath,
		Inputs:      []convert.TensorSpec{{Name: first.Name, DType: dtype.String(), Shape: shape}},
		InputNames:  []string{first.Name},
		OutputNames: []string{"output"},
		DynamicAxes: map[string]map[int]string{
			first.Name: {0: "batch"},
			"output":   {0: "batch"},
		},
		Opset: TorchOpset,
	}, nil
}
