// Package onnxtest builds small serialized ONNX models for tests.
package onnxtest

import (
	"os"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

type Tensor struct {
	Name     string
	ElemType int32
	// Negative entries are written as symbolic dims.
	Dims []int64
}

type Model struct {
	IRVersion    int64
	Producer     string
	Opset        int64
	GraphName    string
	Nodes        int
	Inputs       []Tensor
	Outputs      []Tensor
	Initializers []string
}

// Identity returns a one-node model mapping input to output with float
// tensors of the given dims.
func Identity(input, output string, dims ...int64) Model {
	return Model{
		IRVersion: 8,
		Producer:  "onnxtest",
		Opset:     17,
		GraphName: "identity",
		Nodes:     1,
		Inputs:    []Tensor{{Name: input, ElemType: 1, Dims: dims}},
		Outputs:   []Tensor{{Name: output, ElemType: 1, Dims: dims}},
	}
}

func (m Model) Bytes() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.IRVersion))
	b = appendString(b, 2, m.Producer)

	var graph []byte
	for i := 0; i < m.Nodes; i++ {
		var node []byte
		node = appendString(node, 4, "Identity")
		graph = appendMessage(graph, 1, node)
	}
	graph = appendString(graph, 2, m.GraphName)
	for _, name := range m.Initializers {
		graph = appendMessage(graph, 5, appendString(nil, 8, name))
	}
	for _, t := range m.Inputs {
		graph = appendMessage(graph, 11, valueInfo(t))
	}
	for _, t := range m.Outputs {
		graph = appendMessage(graph, 12, valueInfo(t))
	}
	b = appendMessage(b, 7, graph)

	var opset []byte
	opset = appendString(opset, 1, "")
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, uint64(m.Opset))
	b = appendMessage(b, 8, opset)
	return b
}

// WriteFile writes the model to path, failing the test on error.
func (m Model) WriteFile(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, m.Bytes(), 0o644); err != nil {
		t.Fatalf("error writing onnx fixture: %v", err)
	}
}

func valueInfo(t Tensor) []byte {
	var shape []byte
	for _, d := range t.Dims {
		var dim []byte
		if d < 0 {
			dim = appendString(dim, 2, "batch")
		} else {
			dim = protowire.AppendTag(dim, 1, protowire.VarintType)
			dim = protowire.AppendVarint(dim, uint64(d))
		}
		shape = appendMessage(shape, 1, dim)
	}

	var tensorType []byte
	tensorType = protowire.AppendTag(tensorType, 1, protowire.VarintType)
	tensorType = protowire.AppendVarint(tensorType, uint64(t.ElemType))
	if t.Dims != nil {
		tensorType = appendMessage(tensorType, 2, shape)
	}

	var vi []byte
	vi = appendString(vi, 1, t.Name)
	vi = appendMessage(vi, 2, appendMessage(nil, 1, tensorType))
	return vi
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
