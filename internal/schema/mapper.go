package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"model-release/internal/release"
)

// RawField is a signature entry as stored in registry metadata. Tensor specs
// carry their dtype and shape in TensorSpec; column specs carry the type in Type.
type RawField struct {
	Type       string          `json:"type"`
	Name       *string         `json:"name,omitempty"`
	DType      string          `json:"dtype,omitempty"`
	Shape      json.RawMessage `json:"shape,omitempty"`
	TensorSpec *RawTensorSpec  `json:"tensor-spec,omitempty"`
}

type RawTensorSpec struct {
	DType string          `json:"dtype"`
	Shape json.RawMessage `json:"shape"`
}

// RawSignature is the undecoded signature block of model metadata.
type RawSignature struct {
	Inputs  []RawField
	Outputs []RawField
}

// ParseRawFields decodes the JSON list stored for one side of a signature.
func ParseRawFields(data string) ([]RawField, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var fields []RawField
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, release.SchemaErrorf("invalid signature field list: %v", err)
	}
	return fields, nil
}

// Map normalizes a raw signature into a Signature.
//
// Types are read permissively: a missing type becomes DefaultDType and an
// unrecognized one becomes DTypeUnknown, which serves as FallbackServingType.
// Missing shapes yield an empty Shape.
func Map(raw RawSignature) (Signature, error) {
	inputs, err := mapFields(raw.Inputs, "input")
	if err != nil {
		return Signature{}, fmt.Errorf("inputs: %w", err)
	}
	outputs, err := mapFields(raw.Outputs, "output")
	if err != nil {
		return Signature{}, fmt.Errorf("outputs: %w", err)
	}
	return Signature{Inputs: inputs, Outputs: outputs}, nil
}

func mapFields(raw []RawField, defaultName string) ([]IOField, error) {
	fields := make([]IOField, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, rf := range raw {
		name := fieldName(rf, defaultName, i, len(raw))
		if _, dup := seen[name]; dup {
			return nil, release.SchemaErrorf("duplicate field name %q", name)
		}
		seen[name] = struct{}{}

		rawType, rawShape := rf.typeAndShape()
		dtype, known := ParseDType(rawType)
		if !known {
			slog.Warn("unrecognized dtype, using fallback serving type", "field", name, "dtype", rawType, "serving_type", FallbackServingType)
		}

		shape, err := parseShape(rawShape)
		if err != nil {
			return nil, release.SchemaErrorf("field %q: %v", name, err)
		}

		fields = append(fields, IOField{
			Name:  name,
			Raw:   strings.ToLower(rawType),
			DType: dtype,
			Shape: shape,
		})
	}

	return fields, nil
}

func fieldName(rf RawField, defaultName string, index, total int) string {
	if rf.Name != nil && *rf.Name != "" {
		return *rf.Name
	}
	if total == 1 || index == 0 {
		return defaultName
	}
	return fmt.Sprintf("%s_%d", defaultName, index)
}

func (rf RawField) typeAndShape() (string, json.RawMessage) {
	if rf.TensorSpec != nil {
		return rf.TensorSpec.DType, rf.TensorSpec.Shape
	}
	if rf.DType != "" {
		return rf.DType, rf.Shape
	}
	// column specs name their type directly; "tensor" without a spec has none
	if rf.Type != "" && rf.Type != "tensor" {
		return rf.Type, rf.Shape
	}
	return "", rf.Shape
}

func parseShape(raw json.RawMessage) (Shape, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Shape{}, nil
	}

	var dims []*int64
	if err := json.Unmarshal(raw, &dims); err != nil {
		return nil, fmt.Errorf("invalid shape %s: %w", string(raw), err)
	}

	shape := make(Shape, 0, len(dims))
	for _, d := range dims {
		if d == nil || *d < 0 {
			shape = append(shape, Dim(Dynamic))
		} else {
			shape = append(shape, Dim(*d))
		}
	}
	return shape, nil
}
