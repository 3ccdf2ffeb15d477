// Package dtypes declares the element types of buffers moved between host and device
// memory, and their mapping to and from Go types.
package dtypes

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is the element type of a host or device buffer.
type DType int32

const (
	// InvalidDType represents an invalid (or not set) dtype.
	InvalidDType DType = iota

	// Bool is stored as one byte per element.
	Bool

	Int8
	Int16
	Int32
	Int64

	Uint8
	Uint16
	Uint32
	Uint64

	// Float16 is the IEEE 754 half-precision type, represented in Go by float16.Float16.
	Float16
	Float32
	Float64
)

// Supported is the constraint of Go types that have a direct DType equivalent and can
// back typed views of raw buffers.
type Supported interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float16.Float16 | float32 | float64
}

var dtypeNames = map[DType]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
}

// MapOfNames maps naming variations (Go-style, lower-case and short forms) to dtypes.
var MapOfNames = map[string]DType{
	"bool": Bool, "pred": Bool,
	"int8": Int8, "i8": Int8,
	"int16": Int16, "i16": Int16,
	"int32": Int32, "i32": Int32,
	"int64": Int64, "i64": Int64,
	"uint8": Uint8, "u8": Uint8,
	"uint16": Uint16, "u16": Uint16,
	"uint32": Uint32, "u32": Uint32,
	"uint64": Uint64, "u64": Uint64,
	"float16": Float16, "f16": Float16, "half": Float16,
	"float32": Float32, "f32": Float32,
	"float64": Float64, "f64": Float64,
}

func init() {
	for dt, name := range dtypeNames {
		MapOfNames[name] = dt
	}
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if name, ok := dtypeNames[dtype]; ok {
		return name
	}
	return "UnknownDType"
}

// FromName converts a name to a DType, accepting the variations in MapOfNames.
// It returns InvalidDType for unknown names.
func FromName(name string) DType {
	dt, ok := MapOfNames[name]
	if !ok {
		return InvalidDType
	}
	return dt
}

var sizes = map[DType]int{
	Bool:    1,
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Float16: 2,
	Float32: 4,
	Float64: 8,
}

// Size returns the number of bytes one element occupies. It returns 0 for InvalidDType.
func (dtype DType) Size() int {
	return sizes[dtype]
}

// SizeForDimensions returns the number of bytes a buffer with the given dimensions
// occupies. Scalars (no dimensions) take one element.
func (dtype DType) SizeForDimensions(dimensions ...int) int {
	size := dtype.Size()
	for _, dim := range dimensions {
		size *= dim
	}
	return size
}

var goTypes = map[DType]reflect.Type{
	Bool:    reflect.TypeOf(bool(false)),
	Int8:    reflect.TypeOf(int8(0)),
	Int16:   reflect.TypeOf(int16(0)),
	Int32:   reflect.TypeOf(int32(0)),
	Int64:   reflect.TypeOf(int64(0)),
	Uint8:   reflect.TypeOf(uint8(0)),
	Uint16:  reflect.TypeOf(uint16(0)),
	Uint32:  reflect.TypeOf(uint32(0)),
	Uint64:  reflect.TypeOf(uint64(0)),
	Float16: reflect.TypeOf(float16.Float16(0)),
	Float32: reflect.TypeOf(float32(0)),
	Float64: reflect.TypeOf(float64(0)),
}

var dtypeForGoType = func() map[reflect.Type]DType {
	m := make(map[reflect.Type]DType, len(goTypes))
	for dt, t := range goTypes {
		m[t] = dt
	}
	return m
}()

// FromGoType returns the DType corresponding to the given Go type, or InvalidDType if
// there is no correspondence.
func FromGoType(t reflect.Type) DType {
	return dtypeForGoType[t]
}

// FromGenericsType returns the DType corresponding to the Go type parameter.
func FromGenericsType[T Supported]() DType {
	var v T
	return FromGoType(reflect.TypeOf(v))
}

// GoType returns the Go type corresponding to the DType.
// It returns an error for InvalidDType or unknown values.
func (dtype DType) GoType() (reflect.Type, error) {
	t, ok := goTypes[dtype]
	if !ok {
		return nil, errors.Errorf("dtype %s has no Go type equivalent", dtype)
	}
	return t, nil
}
