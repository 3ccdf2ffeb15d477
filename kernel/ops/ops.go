// Package ops holds reference kernels exercising the execution wrapper end to end:
// pinned staging through AsyncBuffer, scratch-arena temporaries, and per-stream
// compute-library handles. The math is deliberately small; the value is in showing the
// plumbing a real kernel uses.
package ops

import (
	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/dtypes"
	"github.com/Scenerainc/onnxruntime/kernel"
	"github.com/Scenerainc/onnxruntime/tensor"
)

// matrixArgs validates the common single-input single-output 2-D float32 contract and
// returns the input, output and their shape.
func matrixArgs(ctx *kernel.Context, name string) (in, out *tensor.Tensor, rows, cols int, err error) {
	in, out = ctx.Input(0), ctx.Output(0)
	if in == nil || out == nil {
		return nil, nil, 0, 0, errors.Errorf("%s requires one input and one output tensor", name)
	}
	if in.DType() != dtypes.Float32 {
		return nil, nil, 0, 0, errors.Errorf("%s supports Float32 only, got %s", name, in.DType())
	}
	dims := in.Dimensions()
	if len(dims) != 2 {
		return nil, nil, 0, 0, errors.Errorf("%s expects a 2-D input, got %d-D", name, len(dims))
	}
	return in, out, dims[0], dims[1], nil
}
