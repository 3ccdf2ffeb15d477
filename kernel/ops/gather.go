package ops

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/kernel"
)

// Gather copies rows of a 2-D float32 input selected by a fixed index table.
//
// The index table lives on the host at kernel construction time. Each invocation stages
// it into device memory through an AsyncBuffer -- the canonical use of pinned staging:
// the table is needed by device-side work, and the pinned copy must survive until the
// stream drains the transfer.
type Gather struct {
	kernel.Base
	indices []int32
}

// NewGather builds a gather kernel over the given row indices.
func NewGather(p *kernel.Provider, indices []int32) *Gather {
	g := &Gather{indices: slices.Clone(indices)}
	g.Base = kernel.NewBase(p, g)
	return g
}

// ComputeInternal implements kernel.Computer.
func (g *Gather) ComputeInternal(ctx *kernel.Context) error {
	in, out, rows, cols, err := matrixArgs(ctx, "Gather")
	if err != nil {
		return err
	}
	outDims := out.Dimensions()
	if len(outDims) != 2 || outDims[0] != len(g.indices) || outDims[1] != cols {
		return errors.Errorf("Gather output must be %dx%d, got %v", len(g.indices), cols, outDims)
	}

	staged, err := kernel.NewAsyncBufferFromSlice(&g.Base, g.indices)
	if err != nil {
		return err
	}
	if err := staged.IssueCopy(ctx.Stream()); err != nil {
		return err
	}

	inFlat := accel.View[float32](in.Block())
	outFlat := accel.View[float32](out.Block())
	indices := staged.DeviceView() // Defined by the time the command below runs: same stream, issue order.
	if err := ctx.Queue().Submit(func() error {
		for r, row := range indices {
			if row < 0 || int(row) >= rows {
				return accel.NewFault(accel.ErrIllegalAddress,
					"gather index %d out of range for %d rows", row, rows)
			}
			copy(outFlat[r*cols:(r+1)*cols], inFlat[int(row)*cols:(int(row)+1)*cols])
		}
		return nil
	}); err != nil {
		return err
	}
	// The staged index table is an invocation-scoped temporary; hand it back to the
	// arena once the stream is past the command above.
	return g.ReleaseScratch(staged.DeviceBlock(), ctx.Stream())
}
