package cpurt

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Scenerainc/onnxruntime/accel"
)

func TestRuntimeBasics(t *testing.T) {
	rt := New(WithDeviceName("test device"))
	require.Equal(t, "cpurt", rt.Name())

	count, err := rt.DeviceCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	props, err := rt.Properties(0)
	require.NoError(t, err)
	require.Equal(t, "test device", props.Name)
	require.Equal(t, accel.KindGPU, props.Kind)
	require.True(t, props.Kind.IsDevice())

	_, err = rt.Properties(1)
	require.Error(t, err)
	_, err = rt.NewQueue(3)
	require.Error(t, err)
}

func TestQueuePreservesSubmissionOrder(t *testing.T) {
	rt := New()
	q, err := rt.NewQueue(0)
	require.NoError(t, err)

	const n = 1000
	var order []int
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, q.Submit(func() error {
			order = append(order, i)
			return nil
		}))
	}
	require.NoError(t, q.Synchronize())
	require.Len(t, order, n)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestRuntimeSynchronizeJoinsAllQueues(t *testing.T) {
	rt := New()
	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		q, err := rt.NewQueue(0)
		require.NoError(t, err)
		for j := 0; j < 100; j++ {
			require.NoError(t, q.Submit(func() error {
				ran.Add(1)
				return nil
			}))
		}
	}
	require.NoError(t, rt.Synchronize())
	require.Equal(t, int32(400), ran.Load())
}

func TestCommandErrorBecomesStickyFault(t *testing.T) {
	rt := New()
	q, err := rt.NewQueue(0)
	require.NoError(t, err)

	require.NoError(t, q.Submit(func() error {
		return accel.NewFault(accel.ErrIllegalAddress, "an illegal memory access was encountered")
	}))
	// Later successful work must not clear the fault.
	require.NoError(t, q.Submit(func() error { return nil }))
	require.NoError(t, q.Synchronize())

	fault := rt.LastFault()
	require.NotNil(t, fault)
	require.Equal(t, accel.ErrIllegalAddress, fault.Code)
	require.Equal(t, "an illegal memory access was encountered", fault.Message)

	// Polling clears.
	require.Nil(t, rt.LastFault())
}

func TestPlainErrorNormalizedToUnknownFault(t *testing.T) {
	rt := New()
	q, err := rt.NewQueue(0)
	require.NoError(t, err)
	require.NoError(t, q.Submit(func() error { return errors.New("boom") }))
	require.NoError(t, q.Synchronize())

	fault := rt.LastFault()
	require.NotNil(t, fault)
	require.Equal(t, accel.ErrUnknown, fault.Code)
	require.Equal(t, "boom", fault.Message)
}

func TestOldestFaultWins(t *testing.T) {
	rt := New()
	rt.InjectFault(accel.ErrOutOfMemory, "first")
	rt.InjectFault(accel.ErrLaunchFailure, "second")
	fault := rt.LastFault()
	require.NotNil(t, fault)
	require.Equal(t, accel.ErrOutOfMemory, fault.Code)
	require.Nil(t, rt.LastFault())
}

func TestClosedQueueRejectsWork(t *testing.T) {
	rt := New()
	q, err := rt.NewQueue(0)
	require.NoError(t, err)
	require.NoError(t, q.Close())
	require.Error(t, q.Submit(func() error { return nil }))
	require.NoError(t, q.Close(), "closing twice is a no-op")
}

func TestAllocatorLimitAndStats(t *testing.T) {
	alloc := NewAllocator(accel.MemHostPinned, 100)
	require.Equal(t, accel.MemHostPinned, alloc.MemType())

	b, err := alloc.Alloc(80)
	require.NoError(t, err)
	require.Equal(t, 80, b.Len())

	_, err = alloc.Alloc(40)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of memory")

	require.NoError(t, alloc.Free(b))
	require.NoError(t, alloc.Free(b), "double free is a no-op")

	stats := alloc.Stats()
	require.Equal(t, int64(1), stats.Allocs)
	require.Equal(t, int64(1), stats.Frees)
	require.Equal(t, int64(1), stats.FailedAllocs)
	require.Equal(t, int64(0), stats.InUseBytes)
}

func TestTransferCopiesOnQueue(t *testing.T) {
	rt := New()
	q, err := rt.NewQueue(0)
	require.NoError(t, err)

	pinned := NewAllocator(accel.MemHostPinned, 0)
	device := NewAllocator(accel.MemDevice, 0)
	src, err := pinned.Alloc(12)
	require.NoError(t, err)
	dst, err := device.Alloc(12)
	require.NoError(t, err)
	copy(src.Bytes(), []byte("hello device"))

	reg := accel.NewTransferRegistry()
	RegisterTransfers(reg)
	tr, err := reg.Lookup(accel.MemHostPinned, accel.MemDevice)
	require.NoError(t, err)

	require.NoError(t, tr.CopyAsync(dst, src, q))
	require.NoError(t, q.Synchronize())
	require.Equal(t, "hello device", string(dst.Bytes()))

	// Destination too small fails at issuance.
	small, err := device.Alloc(4)
	require.NoError(t, err)
	require.Error(t, tr.CopyAsync(small, src, q))
}

func TestHandles(t *testing.T) {
	rt := New()
	q, err := rt.NewQueue(0)
	require.NoError(t, err)

	h, err := HandleFactory(accel.LibBlas, q)
	require.NoError(t, err)
	blas := h.(*Blas)

	device := NewAllocator(accel.MemDevice, 0)
	x, err := device.Alloc(4 * 4)
	require.NoError(t, err)
	y, err := device.Alloc(4 * 4)
	require.NoError(t, err)
	copy(accel.View[float32](x), []float32{1, 2, 3, 4})
	copy(accel.View[float32](y), []float32{10, 20, 30, 40})

	require.NoError(t, blas.Saxpy(2, x, y, 4))
	require.NoError(t, q.Synchronize())
	require.Equal(t, []float32{12, 24, 36, 48}, accel.View[float32](y))

	d, err := HandleFactory(accel.LibDNN, q)
	require.NoError(t, err)
	dnn := d.(*Dnn)
	in, err := device.Alloc(3 * 4)
	require.NoError(t, err)
	out, err := device.Alloc(3 * 4)
	require.NoError(t, err)
	copy(accel.View[float32](in), []float32{1, 1, 1})
	require.NoError(t, dnn.SoftmaxForward(in, out, 1, 3))
	require.NoError(t, q.Synchronize())
	for _, v := range accel.View[float32](out) {
		require.InDelta(t, 1.0/3.0, v, 1e-6)
	}
}
