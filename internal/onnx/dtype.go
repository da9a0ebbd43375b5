package onnx

import "model-release/internal/schema"

// TensorProto.DataType values.
const (
	ElemUndefined int32 = 0
	ElemFloat     int32 = 1
	ElemUint8     int32 = 2
	ElemInt8      int32 = 3
	ElemUint16    int32 = 4
	ElemInt16     int32 = 5
	ElemInt32     int32 = 6
	ElemInt64     int32 = 7
	ElemString    int32 = 8
	ElemBool      int32 = 9
	ElemFloat16   int32 = 10
	ElemDouble    int32 = 11
	ElemUint32    int32 = 12
	ElemUint64    int32 = 13
)

var elemDTypes = map[int32]schema.DType{
	ElemFloat:   schema.DTypeFloat32,
	ElemUint8:   schema.DTypeUint8,
	ElemInt8:    schema.DTypeInt8,
	ElemUint16:  schema.DTypeUint16,
	ElemInt16:   schema.DTypeInt16,
	ElemInt32:   schema.DTypeInt32,
	ElemInt64:   schema.DTypeInt64,
	ElemString:  schema.DTypeString,
	ElemBool:    schema.DTypeBool,
	ElemFloat16: schema.DTypeFloat16,
	ElemDouble:  schema.DTypeFloat64,
	ElemUint32:  schema.DTypeUint32,
	ElemUint64:  schema.DTypeUint64,
}

func DTypeFromElemType(elem int32) schema.DType {
	if dt, ok := elemDTypes[elem]; ok {
		return dt
	}
	return schema.DTypeUnknown
}

func ElemTypeFromDType(dt schema.DType) int32 {
	if dt == schema.DTypeBytes {
		return ElemString
	}
	for elem, d := range elemDTypes {
		if d == dt {
			return elem
		}
	}
	return ElemUndefined
}
