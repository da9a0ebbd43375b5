package schema

import "strings"

// DType is the closed set of tensor element types the release flow understands.
// Values outside the set map to DTypeUnknown and keep their raw spelling.
type DType int

const (
	DTypeUnknown DType = iota
	DTypeFloat16
	DTypeFloat32
	DTypeFloat64
	DTypeInt8
	DTypeInt16
	DTypeInt32
	DTypeInt64
	DTypeUint8
	DTypeUint16
	DTypeUint32
	DTypeUint64
	DTypeBool
	DTypeString
	DTypeBytes
)

// DefaultDType is used when a field declares no type at all.
const DefaultDType = DTypeFloat32

// FallbackServingType is used for dtypes with no serving equivalent.
const FallbackServingType = "TYPE_FP32"

var dtypeNames = map[DType]string{
	DTypeFloat16: "float16",
	DTypeFloat32: "float32",
	DTypeFloat64: "float64",
	DTypeInt8:    "int8",
	DTypeInt16:   "int16",
	DTypeInt32:   "int32",
	DTypeInt64:   "int64",
	DTypeUint8:   "uint8",
	DTypeUint16:  "uint16",
	DTypeUint32:  "uint32",
	DTypeUint64:  "uint64",
	DTypeBool:    "bool",
	DTypeString:  "string",
	DTypeBytes:   "bytes",
}

// Registry spellings, keyed by their lower-cased form. Covers numpy names used
// in tensor specs and the column types used in tabular specs.
var dtypeAliases = map[string]DType{
	"float16": DTypeFloat16,
	"half":    DTypeFloat16,
	"float32": DTypeFloat32,
	"float":   DTypeFloat32,
	"float64": DTypeFloat64,
	"double":  DTypeFloat64,
	"int8":    DTypeInt8,
	"int16":   DTypeInt16,
	"int32":   DTypeInt32,
	"integer": DTypeInt32,
	"int64":   DTypeInt64,
	"long":    DTypeInt64,
	"uint8":   DTypeUint8,
	"uint16":  DTypeUint16,
	"uint32":  DTypeUint32,
	"uint64":  DTypeUint64,
	"bool":    DTypeBool,
	"boolean": DTypeBool,
	"string":  DTypeString,
	"str":     DTypeString,
	"object":  DTypeString,
	"bytes":   DTypeBytes,
	"binary":  DTypeBytes,
}

var servingTypes = map[DType]string{
	DTypeFloat16: "TYPE_FP16",
	DTypeFloat32: "TYPE_FP32",
	DTypeFloat64: "TYPE_FP64",
	DTypeInt8:    "TYPE_INT8",
	DTypeInt16:   "TYPE_INT16",
	DTypeInt32:   "TYPE_INT32",
	DTypeInt64:   "TYPE_INT64",
	DTypeUint8:   "TYPE_UINT8",
	DTypeUint16:  "TYPE_UINT16",
	DTypeUint32:  "TYPE_UINT32",
	DTypeUint64:  "TYPE_UINT64",
	DTypeBool:    "TYPE_BOOL",
	DTypeString:  "TYPE_STRING",
	DTypeBytes:   "TYPE_STRING",
}

// ParseDType lower-cases raw and looks it up. The boolean is false when the
// spelling is not recognized; the returned type is then DTypeUnknown.
func ParseDType(raw string) (DType, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return DefaultDType, true
	}
	dt, ok := dtypeAliases[key]
	if !ok {
		return DTypeUnknown, false
	}
	return dt, true
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return "unknown"
}

// ServingType returns the serving-engine data type for d, falling back to
// FallbackServingType for unknown types.
func (d DType) ServingType() string {
	if t, ok := servingTypes[d]; ok {
		return t
	}
	return FallbackServingType
}

// DTypeFromServingType is the inverse of ServingType. TYPE_STRING maps to
// DTypeString.
func DTypeFromServingType(servingType string) (DType, bool) {
	for _, dt := range []DType{
		DTypeFloat16, DTypeFloat32, DTypeFloat64,
		DTypeInt8, DTypeInt16, DTypeInt32, DTypeInt64,
		DTypeUint8, DTypeUint16, DTypeUint32, DTypeUint64,
		DTypeBool, DTypeString,
	} {
		if servingTypes[dt] == servingType {
			return dt, true
		}
	}
	return DTypeUnknown, false
}
