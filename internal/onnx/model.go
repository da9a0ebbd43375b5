package onnx

import (
	"errors"
	"fmt"
	"os"

	"model-release/internal/schema"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrNotONNX = errors.New("not an onnx model")

// Field numbers from onnx.proto. Only what inspection needs is decoded.
const (
	modelIRVersion       protowire.Number = 1
	modelProducerName    protowire.Number = 2
	modelProducerVersion protowire.Number = 3
	modelGraph           protowire.Number = 7
	modelOpsetImport     protowire.Number = 8

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	graphNode        protowire.Number = 1
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12

	tensorName protowire.Number = 8

	valueInfoName protowire.Number = 1
	valueInfoType protowire.Number = 2

	typeTensor protowire.Number = 1

	tensorTypeElem  protowire.Number = 1
	tensorTypeShape protowire.Number = 2

	shapeDim protowire.Number = 1

	dimValue protowire.Number = 1
	dimParam protowire.Number = 2
)

type Opset struct {
	Domain  string `json:"domain"`
	Version int64  `json:"version"`
}

// ValueInfo is a graph input or output. Dims holds -1 for symbolic or
// unknown dimensions; a nil Shape means the graph did not declare one.
type ValueInfo struct {
	Name     string       `json:"name"`
	ElemType int32        `json:"elem_type"`
	Shape    schema.Shape `json:"shape,omitempty"`
}

func (v ValueInfo) DType() schema.DType {
	return DTypeFromElemType(v.ElemType)
}

type ModelInfo struct {
	IRVersion       int64       `json:"ir_version"`
	ProducerName    string      `json:"producer_name"`
	ProducerVersion string      `json:"producer_version"`
	Opsets          []Opset     `json:"opsets"`
	GraphName       string      `json:"graph_name"`
	NodeCount       int         `json:"node_count"`
	Inputs          []ValueInfo `json:"inputs"`
	Outputs         []ValueInfo `json:"outputs"`
}

func (m *ModelInfo) InputNames() []string {
	return valueNames(m.Inputs)
}

func (m *ModelInfo) OutputNames() []string {
	return valueNames(m.Outputs)
}

// DefaultOpset returns the version imported for the default operator domain.
func (m *ModelInfo) DefaultOpset() (int64, bool) {
	for _, o := range m.Opsets {
		if o.Domain == "" || o.Domain == "ai.onnx" {
			return o.Version, true
		}
	}
	return 0, false
}

func valueNames(values []ValueInfo) []string {
	names := make([]string, 0, len(values))
	for _, v := range values {
		names = append(names, v.Name)
	}
	return names
}

func ParseFile(path string) (*ModelInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading onnx model %s: %w", path, err)
	}
	info, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing onnx model %s: %w", path, err)
	}
	return info, nil
}

// Parse decodes the structural parts of a serialized ModelProto. A buffer that
// is not valid protobuf, or that carries no ir_version or graph, is rejected
// with ErrNotONNX. Graph inputs that are also initializers are not reported as
// inputs.
func Parse(data []byte) (*ModelInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrNotONNX)
	}

	info := &ModelInfo{}
	var graph []byte
	hasIR, hasGraph := false, false

	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == modelIRVersion && typ == protowire.VarintType:
			info.IRVersion = int64(n)
			hasIR = true
		case num == modelProducerName && typ == protowire.BytesType:
			info.ProducerName = string(v)
		case num == modelProducerVersion && typ == protowire.BytesType:
			info.ProducerVersion = string(v)
		case num == modelGraph && typ == protowire.BytesType:
			graph = v
			hasGraph = true
		case num == modelOpsetImport && typ == protowire.BytesType:
			opset, err := parseOpset(v)
			if err != nil {
				return err
			}
			info.Opsets = append(info.Opsets, opset)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotONNX, err)
	}
	if !hasIR || !hasGraph {
		return nil, fmt.Errorf("%w: missing ir_version or graph", ErrNotONNX)
	}

	if err := parseGraph(graph, info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotONNX, err)
	}
	return info, nil
}

func parseOpset(data []byte) (Opset, error) {
	var o Opset
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == opsetDomain && typ == protowire.BytesType:
			o.Domain = string(v)
		case num == opsetVersion && typ == protowire.VarintType:
			o.Version = int64(n)
		}
		return nil
	})
	return o, err
}

func parseGraph(data []byte, info *ModelInfo) error {
	initializers := make(map[string]bool)
	var inputs []ValueInfo

	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case graphNode:
			info.NodeCount++
		case graphName:
			info.GraphName = string(v)
		case graphInitializer:
			name, err := parseInitializerName(v)
			if err != nil {
				return err
			}
			initializers[name] = true
		case graphInput:
			vi, err := parseValueInfo(v)
			if err != nil {
				return err
			}
			inputs = append(inputs, vi)
		case graphOutput:
			vi, err := parseValueInfo(v)
			if err != nil {
				return err
			}
			info.Outputs = append(info.Outputs, vi)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, in := range inputs {
		if !initializers[in.Name] {
			info.Inputs = append(info.Inputs, in)
		}
	}
	return nil
}

func parseInitializerName(data []byte) (string, error) {
	var name string
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == tensorName && typ == protowire.BytesType {
			name = string(v)
		}
		return nil
	})
	return name, err
}

func parseValueInfo(data []byte) (ValueInfo, error) {
	var vi ValueInfo
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case valueInfoName:
			vi.Name = string(v)
		case valueInfoType:
			return walk(v, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
				if num == typeTensor && typ == protowire.BytesType {
					return parseTensorType(v, &vi)
				}
				return nil
			})
		}
		return nil
	})
	return vi, err
}

func parseTensorType(data []byte, vi *ValueInfo) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == tensorTypeElem && typ == protowire.VarintType:
			vi.ElemType = int32(n)
		case num == tensorTypeShape && typ == protowire.BytesType:
			vi.Shape = schema.Shape{}
			return walk(v, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
				if num != shapeDim || typ != protowire.BytesType {
					return nil
				}
				dim, err := parseDim(v)
				if err != nil {
					return err
				}
				vi.Shape = append(vi.Shape, dim)
				return nil
			})
		}
		return nil
	})
}

func parseDim(data []byte) (schema.Dim, error) {
	dim := schema.Dim(schema.Dynamic)
	err := walk(data, func(num protowire.Number, typ protowire.Type, _ []byte, n uint64) error {
		if num == dimValue && typ == protowire.VarintType && int64(n) >= 0 {
			dim = schema.Dim(int64(n))
		}
		// dim_param is symbolic and stays dynamic
		return nil
	})
	return dim, err
}

// walk iterates the top-level fields of one message. For bytes fields v holds
// the payload, for varint fields n holds the value.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(data) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(data)
		if tagLen < 0 {
			return protowire.ParseError(tagLen)
		}
		if num < protowire.MinValidNumber {
			return fmt.Errorf("invalid field number %d", num)
		}
		data = data[tagLen:]

		var (
			v  []byte
			n  uint64
			ln int
		)
		switch typ {
		case protowire.VarintType:
			n, ln = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			v, ln = protowire.ConsumeBytes(data)
		default:
			ln = protowire.ConsumeFieldValue(num, typ, data)
		}
		if ln < 0 {
			return protowire.ParseError(ln)
		}
		data = data[ln:]

		if err := fn(num, typ, v, n); err != nil {
			return err
		}
	}
	return nil
}
