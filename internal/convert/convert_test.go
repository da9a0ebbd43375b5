package convert_test

import (
	"context"
	"errors"
	"model-release/internal/convert"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest(dir string) convert.Request {
	return convert.Request{
		Flavor:      convert.FlavorPyTorch,
		ArtifactDir: filepath.Join(dir, "artifact"),
		OutputPath:  filepath.Join(dir, "model.onnx"),
		Inputs:      []convert.TensorSpec{{Name: "x", DType: "float32", Shape: []int64{1, 3}}},
		InputNames:  []string{"x"},
		OutputNames: []string{"output"},
		DynamicAxes: map[string]map[int]string{"x": {0: "batch"}, "output": {0: "batch"}},
		Opset:       17,
	}
}

func TestRequestRoundTripThroughFile(t *testing.T) {
	dir := t.TempDir()
	req := sampleRequest(dir)
	path := filepath.Join(dir, "req.json")

	require.NoError(t, convert.WriteRequest(path, req))
	read, err := convert.ReadRequest(path)
	require.NoError(t, err)
	assert.Equal(t, req, read)
}

func TestRequestValidate(t *testing.T) {
	req := sampleRequest(t.TempDir())
	assert.NoError(t, req.Validate())

	noInputs := req
	noInputs.Inputs = nil
	assert.Error(t, noInputs.Validate())

	noFlavor := req
	noFlavor.Flavor = ""
	assert.Error(t, noFlavor.Validate())
}

func dispense(t *testing.T, impl convert.Converter) convert.Converter {
	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		convert.PluginName: &convert.ConverterPlugin{Impl: impl},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense(convert.PluginName)
	require.NoError(t, err)

	c, ok := raw.(convert.Converter)
	require.True(t, ok)
	return c
}

func TestPluginRPCConvert(t *testing.T) {
	var received convert.Request
	impl := convert.ConverterFunc(func(_ context.Context, req convert.Request) (convert.Response, error) {
		received = req
		return convert.Response{OutputPath: req.OutputPath, Producer: "fake"}, nil
	})

	req := sampleRequest(t.TempDir())
	resp, err := dispense(t, impl).Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.OutputPath, resp.OutputPath)
	assert.Equal(t, "fake", resp.Producer)
	assert.Equal(t, req, received)
}

func TestPluginRPCConvertError(t *testing.T) {
	impl := convert.ConverterFunc(func(context.Context, convert.Request) (convert.Response, error) {
		return convert.Response{}, errors.New("torch export failed")
	})

	_, err := dispense(t, impl).Convert(context.Background(), sampleRequest(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "torch export failed")
}

func writeScript(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "convert.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestScriptConverterProducesFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	dir := t.TempDir()
	req := sampleRequest(dir)
	script := writeScript(t, "echo converting\nprintf onnx > "+req.OutputPath+"\n")

	c := &convert.ScriptConverter{Python: "sh", Script: script}
	resp, err := c.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.OutputPath, resp.OutputPath)
	assert.Equal(t, "converting", resp.Log)
}

func TestScriptConverterFailureIncludesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	script := writeScript(t, "echo 'ModuleNotFoundError: skl2onnx' >&2\nexit 3\n")

	c := &convert.ScriptConverter{Python: "sh", Script: script}
	_, err := c.Convert(context.Background(), sampleRequest(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skl2onnx")
}

func TestScriptConverterRequiresOutputFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	script := writeScript(t, "exit 0\n")

	c := &convert.ScriptConverter{Python: "sh", Script: script}
	_, err := c.Convert(context.Background(), sampleRequest(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced no file")
}
