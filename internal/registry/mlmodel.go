package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"model-release/internal/release"
	"model-release/internal/schema"

	"gopkg.in/yaml.v2"
)

const MLmodelFile = "MLmodel"

// MLmodel is the metadata file stored at the root of every logged model.
type MLmodel struct {
	ArtifactPath   string                   `yaml:"artifact_path"`
	Flavors        map[string]yaml.MapSlice `yaml:"flavors"`
	MLflowVersion  string                   `yaml:"mlflow_version"`
	ModelUUID      string                   `yaml:"model_uuid"`
	RunID          string                   `yaml:"run_id"`
	UTCTimeCreated string                   `yaml:"utc_time_created"`
	Signature      *MLmodelSignature        `yaml:"signature"`
}

// MLmodelSignature holds the JSON encoded field lists as written by the
// registry.
type MLmodelSignature struct {
	Inputs  string `yaml:"inputs"`
	Outputs string `yaml:"outputs"`
}

func ParseMLmodel(data []byte) (*MLmodel, error) {
	var m MLmodel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing MLmodel: %w", err)
	}
	return &m, nil
}

func ReadMLmodel(dir string) (*MLmodel, error) {
	path := filepath.Join(dir, MLmodelFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("MLmodel file not found at %s: %w", path, err)
	}
	return ParseMLmodel(data)
}

// FlavorNames returns the recorded flavors in sorted order.
func (m *MLmodel) FlavorNames() []string {
	names := make([]string, 0, len(m.Flavors))
	for name := range m.Flavors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlavorOption looks up a single option of one flavor, e.g. the pickled
// model file of the sklearn flavor.
func (m *MLmodel) FlavorOption(flavor, key string) (string, bool) {
	for _, item := range m.Flavors[flavor] {
		if k, ok := item.Key.(string); ok && k == key {
			return fmt.Sprint(item.Value), true
		}
	}
	return "", false
}

// RawSignature decodes the signature. A model without one cannot be exported.
func (m *MLmodel) RawSignature() (schema.RawSignature, error) {
	if m.Signature == nil || (m.Signature.Inputs == "" && m.Signature.Outputs == "") {
		return schema.RawSignature{}, release.SchemaErrorf("model has no signature; cannot infer serving config")
	}

	inputs, err := schema.ParseRawFields(m.Signature.Inputs)
	if err != nil {
		return schema.RawSignature{}, fmt.Errorf("signature inputs: %w", err)
	}
	outputs, err := schema.ParseRawFields(m.Signature.Outputs)
	if err != nil {
		return schema.RawSignature{}, fmt.Errorf("signature outputs: %w", err)
	}
	return schema.RawSignature{Inputs: inputs, Outputs: outputs}, nil
}
