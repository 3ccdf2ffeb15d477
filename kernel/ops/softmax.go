package ops

import (
	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/kernel"
)

// softmaxer is the DNN-library capability Softmax needs from the stream's handle.
type softmaxer interface {
	SoftmaxForward(x, y *accel.Block, rows, cols int) error
}

// Softmax computes the row-wise softmax of a 2-D float32 tensor through the
// neural-network primitives library, using the handle cached on the invocation's stream.
type Softmax struct {
	kernel.Base
}

// NewSoftmax builds a softmax kernel.
func NewSoftmax(p *kernel.Provider) *Softmax {
	s := &Softmax{}
	s.Base = kernel.NewBase(p, s)
	return s
}

// ComputeInternal implements kernel.Computer.
func (s *Softmax) ComputeInternal(ctx *kernel.Context) error {
	in, out, rows, cols, err := matrixArgs(ctx, "Softmax")
	if err != nil {
		return err
	}
	if cols == 0 {
		return errors.New("Softmax rows must have at least one element")
	}

	handle, err := s.StreamHandle(ctx, accel.LibDNN)
	if err != nil {
		return err
	}
	dnn, ok := handle.(softmaxer)
	if !ok {
		return errors.Errorf("the stream's %s handle does not provide softmax", handle.Kind())
	}
	return dnn.SoftmaxForward(in.Block(), out.Block(), rows, cols)
}
