package schema

import (
	"encoding/json"
	"strconv"
)

// Dynamic marks a dimension whose size is unknown at export time.
const Dynamic int64 = -1

// Dim is a single tensor dimension. Negative values are dynamic.
type Dim int64

func (d Dim) IsDynamic() bool {
	return d < 0
}

func (d Dim) String() string {
	return strconv.FormatInt(int64(d), 10)
}

type Shape []Dim

// IOField describes one named tensor of a model signature.
type IOField struct {
	Name string `json:"name"`
	// Raw keeps the registry spelling of the type, lower-cased.
	Raw   string `json:"raw_dtype,omitempty"`
	DType DType  `json:"-"`
	Shape Shape  `json:"shape"`
}

func (f IOField) MarshalJSON() ([]byte, error) {
	type alias IOField
	return json.Marshal(struct {
		alias
		DType string `json:"dtype"`
	}{alias: alias(f), DType: f.DType.String()})
}

func (f *IOField) UnmarshalJSON(data []byte) error {
	type alias IOField
	var v struct {
		alias
		DType string `json:"dtype"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = IOField(v.alias)
	f.DType, _ = ParseDType(v.DType)
	return nil
}

// HasShape reports whether the registry declared any shape information.
func (f IOField) HasShape() bool {
	return len(f.Shape) > 0
}

// Signature is the ordered input/output schema of a model version. Order is
// significant: it is the order tensors are declared to the serving engine.
type Signature struct {
	Inputs  []IOField `json:"inputs"`
	Outputs []IOField `json:"outputs"`
}

func (s Signature) InputNames() []string {
	return fieldNames(s.Inputs)
}

func (s Signature) OutputNames() []string {
	return fieldNames(s.Outputs)
}

func fieldNames(fields []IOField) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}
