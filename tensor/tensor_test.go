package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/accel/cpurt"
	"github.com/Scenerainc/onnxruntime/dtypes"
)

func TestTensorBasics(t *testing.T) {
	alloc := cpurt.NewAllocator(accel.MemDevice, 0)
	block, err := alloc.Alloc(dtypes.Float32.SizeForDimensions(2, 3))
	require.NoError(t, err)

	ten, err := New(dtypes.Float32, []int{2, 3}, block)
	require.NoError(t, err)
	require.Equal(t, dtypes.Float32, ten.DType())
	require.Equal(t, []int{2, 3}, ten.Dimensions())
	require.Equal(t, 6, ten.NumElements())
	require.Equal(t, accel.MemDevice, ten.Location())
	require.Equal(t, "Float32[2,3]@Device", ten.String())

	flat, err := Flat[float32](ten)
	require.NoError(t, err)
	require.Len(t, flat, 6)
	flat[5] = 42
	require.Equal(t, float32(42), accel.View[float32](block)[5])
}

func TestTensorValidation(t *testing.T) {
	alloc := cpurt.NewAllocator(accel.MemHost, 0)
	block, err := alloc.Alloc(8)
	require.NoError(t, err)

	_, err = New(dtypes.InvalidDType, []int{2}, block)
	require.Error(t, err)

	_, err = New(dtypes.Float32, []int{-1}, block)
	require.Error(t, err)

	_, err = New(dtypes.Float32, []int{4}, block) // Needs 16 bytes, block holds 8.
	require.Error(t, err)

	ten, err := New(dtypes.Float64, nil, block) // Scalar.
	require.NoError(t, err)
	require.Equal(t, 1, ten.NumElements())

	_, err = Flat[float32](ten)
	require.Error(t, err, "dtype mismatch must be rejected")
}
