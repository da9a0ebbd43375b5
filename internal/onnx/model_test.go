package onnx_test

import (
	"errors"
	"model-release/internal/onnx"
	"model-release/internal/onnx/onnxtest"
	"model-release/internal/schema"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentityModel(t *testing.T) {
	data := onnxtest.Identity("input", "output", -1, 4).Bytes()

	info, err := onnx.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, int64(8), info.IRVersion)
	assert.Equal(t, "onnxtest", info.ProducerName)
	assert.Equal(t, "identity", info.GraphName)
	assert.Equal(t, 1, info.NodeCount)
	assert.Equal(t, []string{"input"}, info.InputNames())
	assert.Equal(t, []string{"output"}, info.OutputNames())
	assert.Equal(t, schema.Shape{-1, 4}, info.Inputs[0].Shape)
	assert.Equal(t, schema.DTypeFloat32, info.Inputs[0].DType())

	opset, ok := info.DefaultOpset()
	require.True(t, ok)
	assert.Equal(t, int64(17), opset)
}

func TestParseSkipsInitializerInputs(t *testing.T) {
	m := onnxtest.Identity("x", "y", 2)
	m.Inputs = append(m.Inputs, onnxtest.Tensor{Name: "weight", ElemType: onnx.ElemFloat, Dims: []int64{2, 2}})
	m.Initializers = []string{"weight"}

	info, err := onnx.Parse(m.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, info.InputNames())
}

func TestParseMultipleTensors(t *testing.T) {
	m := onnxtest.Model{
		IRVersion: 7,
		Opset:     13,
		Nodes:     3,
		Inputs: []onnxtest.Tensor{
			{Name: "ids", ElemType: onnx.ElemInt64, Dims: []int64{-1, 128}},
			{Name: "mask", ElemType: onnx.ElemBool},
		},
		Outputs: []onnxtest.Tensor{
			{Name: "logits", ElemType: onnx.ElemDouble, Dims: []int64{-1, 2}},
		},
	}

	info, err := onnx.Parse(m.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, info.NodeCount)
	assert.Equal(t, []string{"ids", "mask"}, info.InputNames())
	assert.Equal(t, schema.DTypeInt64, info.Inputs[0].DType())
	assert.Nil(t, info.Inputs[1].Shape)
	assert.Equal(t, schema.DTypeFloat64, info.Outputs[0].DType())
}

func TestParseRejectsNonONNX(t *testing.T) {
	cases := map[string][]byte{
		"empty":       {},
		"text":        []byte("this is definitely not a protobuf model"),
		"truncated":   onnxtest.Identity("a", "b", 1).Bytes()[:10],
		"no graph":    {0x08, 0x08},
		"placeholder": []byte("onnx"),
	}
	for name, data := range cases {
		_, err := onnx.Parse(data)
		assert.True(t, errors.Is(err, onnx.ErrNotONNX), "%s: %v", name, err)
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := onnx.ParseFile(filepath.Join(t.TempDir(), "model.onnx"))
	assert.Error(t, err)
}

func TestStructuralInspector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	onnxtest.Identity("in", "out", -1, 3).WriteFile(t, path)

	info, err := onnx.StructuralInspector{}.Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, info.InputNames())
}

func TestElemTypeMapping(t *testing.T) {
	for _, dt := range []schema.DType{
		schema.DTypeFloat16, schema.DTypeFloat32, schema.DTypeFloat64,
		schema.DTypeInt8, schema.DTypeInt16, schema.DTypeInt32, schema.DTypeInt64,
		schema.DTypeUint8, schema.DTypeUint16, schema.DTypeUint32, schema.DTypeUint64,
		schema.DTypeBool, schema.DTypeString,
	} {
		assert.Equal(t, dt, onnx.DTypeFromElemType(onnx.ElemTypeFromDType(dt)), dt.String())
	}
	assert.Equal(t, onnx.ElemString, onnx.ElemTypeFromDType(schema.DTypeBytes))
	assert.Equal(t, schema.DTypeUnknown, onnx.DTypeFromElemType(99))
}
