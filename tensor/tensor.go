// Package tensor provides the minimal device-resident tensor the execution core moves
// between memory locations: an element type, dimensions, and the memory block backing
// the data. Operator math beyond what the execution wrapper needs lives elsewhere.
package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/dtypes"
)

// Tensor couples an element type and dimensions with the block holding the data. The
// tensor does not own the block; lifetime follows the block's allocator rules.
type Tensor struct {
	dtype dtypes.DType
	dims  []int
	block *accel.Block
}

// New creates a tensor over the given block. The block must hold at least
// dtype.SizeForDimensions(dims...) bytes.
func New(dtype dtypes.DType, dims []int, block *accel.Block) (*Tensor, error) {
	if dtype == dtypes.InvalidDType {
		return nil, errors.New("tensor with invalid dtype")
	}
	for _, dim := range dims {
		if dim < 0 {
			return nil, errors.Errorf("tensor with negative dimension in %v", dims)
		}
	}
	need := dtype.SizeForDimensions(dims...)
	if block.Len() < need {
		return nil, errors.Errorf("tensor %s%v needs %d bytes, block holds %d", dtype, dims, need, block.Len())
	}
	return &Tensor{dtype: dtype, dims: dims, block: block}, nil
}

// DType returns the element type.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Dimensions returns the tensor's dimensions. The slice is owned by the tensor.
func (t *Tensor) Dimensions() []int { return t.dims }

// NumElements returns the product of the dimensions; 1 for a scalar.
func (t *Tensor) NumElements() int {
	n := 1
	for _, dim := range t.dims {
		n *= dim
	}
	return n
}

// Location returns the memory type of the backing block.
func (t *Tensor) Location() accel.MemType {
	return t.block.MemType()
}

// Block returns the backing block.
func (t *Tensor) Block() *accel.Block { return t.block }

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	dims := make([]string, len(t.dims))
	for i, dim := range t.dims {
		dims[i] = fmt.Sprintf("%d", dim)
	}
	return fmt.Sprintf("%s[%s]@%s", t.dtype, strings.Join(dims, ","), t.Location())
}

// Flat returns a typed view over the tensor's elements. It fails if T does not match the
// tensor's dtype. The view aliases the backing block.
func Flat[T dtypes.Supported](t *Tensor) ([]T, error) {
	want := dtypes.FromGenericsType[T]()
	if want != t.dtype {
		return nil, errors.Errorf("tensor holds %s, requested a %s view", t.dtype, want)
	}
	return accel.View[T](t.block)[:t.NumElements()], nil
}
