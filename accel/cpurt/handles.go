package cpurt

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
)

// HandleFactory creates cpurt's compute-library handles. Each handle is bound to the
// queue it was created for, one handle per execution context.
func HandleFactory(kind accel.LibraryKind, q accel.Queue) (accel.Handle, error) {
	if q == nil {
		return nil, errors.Errorf("creating a %s handle requires a queue", kind)
	}
	switch kind {
	case accel.LibBlas:
		return &Blas{q: q}, nil
	case accel.LibDNN:
		return &Dnn{q: q}, nil
	}
	return nil, errors.Errorf("cpurt has no %s library", kind)
}

// Blas is the software dense linear-algebra handle.
type Blas struct {
	q accel.Queue
}

// Kind implements accel.Handle.
func (b *Blas) Kind() accel.LibraryKind { return accel.LibBlas }

// Close implements accel.Handle.
func (b *Blas) Close() error { return nil }

// Saxpy enqueues y[i] += alpha*x[i] over n float32 elements on the handle's queue.
func (b *Blas) Saxpy(alpha float32, x, y *accel.Block, n int) error {
	xs := accel.View[float32](x)
	ys := accel.View[float32](y)
	if len(xs) < n || len(ys) < n {
		return errors.Errorf("Saxpy over %d elements, blocks hold %d and %d", n, len(xs), len(ys))
	}
	return b.q.Submit(func() error {
		for i := 0; i < n; i++ {
			ys[i] += alpha * xs[i]
		}
		return nil
	})
}

// Dnn is the software neural-network primitives handle.
type Dnn struct {
	q accel.Queue
}

// Kind implements accel.Handle.
func (d *Dnn) Kind() accel.LibraryKind { return accel.LibDNN }

// Close implements accel.Handle.
func (d *Dnn) Close() error { return nil }

// SoftmaxForward enqueues a row-wise float32 softmax of x into y, for rows x cols
// elements. Rows are normalized by their maximum before exponentiation.
func (d *Dnn) SoftmaxForward(x, y *accel.Block, rows, cols int) error {
	if rows < 0 || cols <= 0 {
		return errors.Errorf("SoftmaxForward with invalid shape %dx%d", rows, cols)
	}
	xs := accel.View[float32](x)
	ys := accel.View[float32](y)
	if len(xs) < rows*cols || len(ys) < rows*cols {
		return errors.Errorf("SoftmaxForward over %dx%d elements, blocks hold %d and %d", rows, cols, len(xs), len(ys))
	}
	return d.q.Submit(func() error {
		for r := 0; r < rows; r++ {
			row := xs[r*cols : (r+1)*cols]
			out := ys[r*cols : (r+1)*cols]
			maxVal := row[0]
			for _, v := range row[1:] {
				if v > maxVal {
					maxVal = v
				}
			}
			var sum float32
			for i, v := range row {
				e := math32.Exp(v - maxVal)
				out[i] = e
				sum += e
			}
			for i := range out {
				out[i] /= sum
			}
		}
		return nil
	})
}
