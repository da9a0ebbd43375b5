package schema_test

import (
	"model-release/internal/release"
	"model-release/internal/schema"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFields(t *testing.T, data string) []schema.RawField {
	t.Helper()
	fields, err := schema.ParseRawFields(data)
	require.NoError(t, err)
	return fields
}

func TestMapTensorSpec(t *testing.T) {
	raw := schema.RawSignature{
		Inputs:  mustFields(t, `[{"type": "tensor", "tensor-spec": {"dtype": "float32", "shape": [-1, 4]}, "name": "x"}]`),
		Outputs: mustFields(t, `[{"type": "tensor", "tensor-spec": {"dtype": "int64", "shape": [-1]}, "name": "label"}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)

	require.Len(t, sig.Inputs, 1)
	assert.Equal(t, "x", sig.Inputs[0].Name)
	assert.Equal(t, schema.DTypeFloat32, sig.Inputs[0].DType)
	assert.Equal(t, schema.Shape{-1, 4}, sig.Inputs[0].Shape)

	require.Len(t, sig.Outputs, 1)
	assert.Equal(t, "label", sig.Outputs[0].Name)
	assert.Equal(t, schema.DTypeInt64, sig.Outputs[0].DType)
	assert.Equal(t, schema.Shape{-1}, sig.Outputs[0].Shape)
}

func TestMapNullDimensionIsDynamic(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[{"name": "x", "dtype": "float32", "shape": [null, 4]}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)
	assert.Equal(t, schema.Shape{schema.Dim(schema.Dynamic), 4}, sig.Inputs[0].Shape)
	assert.True(t, sig.Inputs[0].Shape[0].IsDynamic())
}

func TestMapColumnSpec(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[
			{"type": "double", "name": "temperature", "required": true},
			{"type": "long", "name": "station_id", "required": true},
			{"type": "boolean", "name": "holiday", "required": true}
		]`),
		Outputs: mustFields(t, `[{"type": "double", "required": true}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"temperature", "station_id", "holiday"}, sig.InputNames())
	assert.Equal(t, schema.DTypeFloat64, sig.Inputs[0].DType)
	assert.Equal(t, schema.DTypeInt64, sig.Inputs[1].DType)
	assert.Equal(t, schema.DTypeBool, sig.Inputs[2].DType)
	for _, f := range sig.Inputs {
		assert.Empty(t, f.Shape)
		assert.False(t, f.HasShape())
	}

	assert.Equal(t, []string{"output"}, sig.OutputNames())
}

func TestMapMissingTypeDefaultsToFloat32(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[{"type": "tensor", "name": "x"}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)
	assert.Equal(t, schema.DTypeFloat32, sig.Inputs[0].DType)
	assert.Equal(t, "TYPE_FP32", sig.Inputs[0].DType.ServingType())
}

func TestMapUnknownTypeFallsBack(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[{"type": "datetime", "name": "ts"}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)
	assert.Equal(t, schema.DTypeUnknown, sig.Inputs[0].DType)
	assert.Equal(t, "datetime", sig.Inputs[0].Raw)
	assert.Equal(t, schema.FallbackServingType, sig.Inputs[0].DType.ServingType())
}

func TestMapDtypeIsCaseInsensitive(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[{"name": "x", "dtype": "Float64"}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)
	assert.Equal(t, schema.DTypeFloat64, sig.Inputs[0].DType)
	assert.Equal(t, "float64", sig.Inputs[0].Raw)
}

func TestMapUnnamedFieldsGetPositionalNames(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[{"type": "double"}, {"type": "double"}]`),
	}

	sig, err := schema.Map(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"input", "input_1"}, sig.InputNames())
}

func TestMapDuplicateNames(t *testing.T) {
	raw := schema.RawSignature{
		Inputs: mustFields(t, `[{"type": "double", "name": "a"}, {"type": "long", "name": "a"}]`),
	}

	_, err := schema.Map(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, release.ErrSchema)
}

func TestMapSameNameAcrossInputsAndOutputs(t *testing.T) {
	raw := schema.RawSignature{
		Inputs:  mustFields(t, `[{"type": "double", "name": "value"}]`),
		Outputs: mustFields(t, `[{"type": "double", "name": "value"}]`),
	}

	_, err := schema.Map(raw)
	assert.NoError(t, err)
}

func TestParseRawFieldsInvalidJSON(t *testing.T) {
	_, err := schema.ParseRawFields(`{not json`)
	assert.ErrorIs(t, err, release.ErrSchema)

	fields, err := schema.ParseRawFields("")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestServingTypes(t *testing.T) {
	cases := map[string]string{
		"float32": "TYPE_FP32",
		"float64": "TYPE_FP64",
		"int32":   "TYPE_INT32",
		"int64":   "TYPE_INT64",
		"bool":    "TYPE_BOOL",
		"string":  "TYPE_STRING",
		"str":     "TYPE_STRING",
		"float16": "TYPE_FP16",
		"uint8":   "TYPE_UINT8",
	}
	for raw, expected := range cases {
		dt, ok := schema.ParseDType(raw)
		require.True(t, ok, raw)
		assert.Equal(t, expected, dt.ServingType(), raw)

		back, ok := schema.DTypeFromServingType(expected)
		require.True(t, ok)
		assert.Equal(t, expected, back.ServingType())
	}
}
