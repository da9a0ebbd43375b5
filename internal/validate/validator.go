package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"model-release/internal/onnx"
	"model-release/internal/release"
	"model-release/internal/tritonconfig"
)

// Report summarizes an accepted bundle.
type Report struct {
	Config tritonconfig.ModelConfig
	Model  *onnx.ModelInfo
}

// Validator gates promotion on a bundle directory. It never writes.
type Validator struct {
	inspector onnx.Inspector

	// StrictTensorNames rejects bundles whose config declares tensors the
	// exported graph does not have. Otherwise the mismatch is only logged.
	StrictTensorNames bool
}

// NewValidator uses the structural inspector when inspector is nil.
func NewValidator(inspector onnx.Inspector) *Validator {
	if inspector == nil {
		inspector = onnx.StructuralInspector{}
	}
	return &Validator{inspector: inspector}
}

// Validate checks dir in order and stops at the first failure:
// config present, artifact present, artifact readable as onnx, config
// readable with at least one input and one output.
func (v *Validator) Validate(dir, configName, modelName string) (*Report, error) {
	configPath := filepath.Join(dir, configName)
	modelPath := filepath.Join(dir, modelName)

	if err := requireFile(configPath); err != nil {
		return nil, release.ValidationErrorf("missing config file: %w", err)
	}
	if err := requireFile(modelPath); err != nil {
		return nil, release.ValidationErrorf("missing model file: %w", err)
	}

	info, err := v.inspector.Inspect(modelPath)
	if err != nil {
		return nil, release.ValidationErrorf("model file %s is not a loadable onnx model: %w", modelPath, err)
	}

	cfg, err := tritonconfig.ReadFile(configPath)
	if err != nil {
		return nil, release.ValidationErrorf("invalid config file: %w", err)
	}
	if len(cfg.Inputs) == 0 || len(cfg.Outputs) == 0 {
		return nil, release.ValidationErrorf("config %s declares %d inputs and %d outputs", configPath, len(cfg.Inputs), len(cfg.Outputs))
	}

	if err := v.checkTensorNames(cfg, info); err != nil {
		return nil, err
	}

	slog.Info("bundle validated", "dir", dir, "ir_version", info.IRVersion, "inputs", info.InputNames(), "outputs", info.OutputNames())

	return &Report{Config: cfg, Model: info}, nil
}

// checkTensorNames compares the config declarations with the graph. The
// serving engine refuses to load a model whose config names unknown tensors.
func (v *Validator) checkTensorNames(cfg tritonconfig.ModelConfig, info *onnx.ModelInfo) error {
	var missing []string
	for _, in := range cfg.Inputs {
		if !slices.Contains(info.InputNames(), in.Name) {
			missing = append(missing, "input "+in.Name)
		}
	}
	for _, out := range cfg.Outputs {
		if !slices.Contains(info.OutputNames(), out.Name) {
			missing = append(missing, "output "+out.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if v.StrictTensorNames {
		return release.ValidationErrorf("config declares tensors missing from the exported model: %v (model inputs %v, outputs %v)", missing, info.InputNames(), info.OutputNames())
	}
	slog.Warn("config tensors not found in exported model", "missing", missing, "model_inputs", info.InputNames(), "model_outputs", info.OutputNames())
	return nil
}

func requireFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s does not exist", path)
		}
		return err
	}
	if stat.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
