package ops

import (
	"github.com/chewxy/math32"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/kernel"
)

// Normalize scales each row of a 2-D float32 tensor to unit L2 norm. The per-row norms
// live in a scratch-arena temporary: allocated against the invocation's stream, returned
// to the arena gated on the stream's completion.
type Normalize struct {
	kernel.Base

	// epsilon guards rows that are all zeros.
	epsilon float32
}

// NewNormalize builds a row-normalization kernel.
func NewNormalize(p *kernel.Provider, epsilon float32) *Normalize {
	n := &Normalize{epsilon: epsilon}
	n.Base = kernel.NewBase(p, n)
	return n
}

// ComputeInternal implements kernel.Computer.
func (n *Normalize) ComputeInternal(ctx *kernel.Context) error {
	in, out, rows, cols, err := matrixArgs(ctx, "Normalize")
	if err != nil {
		return err
	}

	stream := ctx.Stream()
	norms, err := kernel.Scratch[float32](&n.Base, rows, stream)
	if err != nil {
		return err
	}

	inFlat := accel.View[float32](in.Block())
	outFlat := accel.View[float32](out.Block())
	normsFlat := accel.View[float32](norms)
	epsilon := n.epsilon
	if err := ctx.Queue().Submit(func() error {
		for r := 0; r < rows; r++ {
			var sum float32
			for _, v := range inFlat[r*cols : (r+1)*cols] {
				sum += v * v
			}
			normsFlat[r] = math32.Sqrt(sum) + epsilon
		}
		return nil
	}); err != nil {
		return err
	}
	if err := ctx.Queue().Submit(func() error {
		for r := 0; r < rows; r++ {
			norm := normsFlat[r]
			for i, v := range inFlat[r*cols : (r+1)*cols] {
				outFlat[r*cols+i] = v / norm
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return n.ReleaseScratch(norms, stream)
}
