package ops

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/accel/cpurt"
	"github.com/Scenerainc/onnxruntime/dtypes"
	"github.com/Scenerainc/onnxruntime/kernel"
	"github.com/Scenerainc/onnxruntime/tensor"
)

type opsEnv struct {
	rt       *cpurt.Runtime
	provider *kernel.Provider
	stream   *accel.Stream
	device   *cpurt.Allocator
}

func newOpsEnv(t *testing.T) *opsEnv {
	t.Helper()
	rt := cpurt.New()
	device := cpurt.NewAllocator(accel.MemDevice, 0)
	registry := accel.NewTransferRegistry()
	cpurt.RegisterTransfers(registry)

	provider, err := kernel.NewProvider(rt, 0,
		kernel.WithPinnedAllocator(cpurt.NewAllocator(accel.MemHostPinned, 0)),
		kernel.WithDeviceAllocator(device),
		kernel.WithTransferRegistry(registry),
		kernel.WithHandleFactory(cpurt.HandleFactory),
	)
	require.NoError(t, err)

	stream, err := provider.NewStream()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, stream.Close())
		require.NoError(t, provider.Close())
	})
	return &opsEnv{rt: rt, provider: provider, stream: stream, device: device}
}

// deviceMatrix allocates a rows x cols float32 tensor in device memory, filled with data
// when given.
func (e *opsEnv) deviceMatrix(t *testing.T, rows, cols int, data []float32) *tensor.Tensor {
	t.Helper()
	block, err := e.device.Alloc(dtypes.Float32.SizeForDimensions(rows, cols))
	require.NoError(t, err)
	copy(accel.View[float32](block), data)
	ten, err := tensor.New(dtypes.Float32, []int{rows, cols}, block)
	require.NoError(t, err)
	return ten
}

func flat32(t *testing.T, ten *tensor.Tensor) []float32 {
	t.Helper()
	f, err := tensor.Flat[float32](ten)
	require.NoError(t, err)
	return f
}

func TestGather(t *testing.T) {
	env := newOpsEnv(t)
	in := env.deviceMatrix(t, 3, 2, []float32{1, 2, 3, 4, 5, 6})
	out := env.deviceMatrix(t, 2, 2, nil)

	g := NewGather(env.provider, []int32{2, 0})
	ctx := kernel.NewContext(env.stream, []*tensor.Tensor{in}, []*tensor.Tensor{out})
	require.NoError(t, g.Compute(ctx))
	require.Equal(t, []float32{5, 6, 1, 2}, flat32(t, out))
}

func TestGatherOutOfRangeIndexBecomesFault(t *testing.T) {
	env := newOpsEnv(t)
	in := env.deviceMatrix(t, 3, 2, []float32{1, 2, 3, 4, 5, 6})
	out := env.deviceMatrix(t, 2, 2, nil)

	g := NewGather(env.provider, []int32{1, 9})
	ctx := kernel.NewContext(env.stream, []*tensor.Tensor{in}, []*tensor.Tensor{out})

	// The domain computation succeeds; the fault fires asynchronously and the wrapper
	// promotes it.
	err := g.Compute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "IllegalAddress")
	require.Contains(t, err.Error(), "out of range")
	require.Nil(t, env.rt.LastFault(), "the promotion consumed the fault")
}

func TestGatherShapeMismatch(t *testing.T) {
	env := newOpsEnv(t)
	in := env.deviceMatrix(t, 3, 2, []float32{1, 2, 3, 4, 5, 6})
	out := env.deviceMatrix(t, 3, 2, nil) // Wants 2x2.

	g := NewGather(env.provider, []int32{2, 0})
	ctx := kernel.NewContext(env.stream, []*tensor.Tensor{in}, []*tensor.Tensor{out})
	err := g.Compute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Gather output must be 2x2")
}

func TestSoftmax(t *testing.T) {
	env := newOpsEnv(t)
	in := env.deviceMatrix(t, 2, 3, []float32{1, 2, 3, 0, 0, 0})
	out := env.deviceMatrix(t, 2, 3, nil)

	s := NewSoftmax(env.provider)
	ctx := kernel.NewContext(env.stream, []*tensor.Tensor{in}, []*tensor.Tensor{out})
	require.NoError(t, s.Compute(ctx))

	got := flat32(t, out)
	var sum0 float32
	for _, v := range got[:3] {
		sum0 += v
	}
	require.InDelta(t, 1.0, sum0, 1e-5)
	require.Greater(t, got[2], got[1])
	require.Greater(t, got[1], got[0])
	for _, v := range got[3:] {
		require.InDelta(t, 1.0/3.0, v, 1e-5)
	}
}

func TestSoftmaxRejectsNonMatrixInput(t *testing.T) {
	env := newOpsEnv(t)
	block, err := env.device.Alloc(dtypes.Float32.SizeForDimensions(4))
	require.NoError(t, err)
	vec, err := tensor.New(dtypes.Float32, []int{4}, block)
	require.NoError(t, err)

	s := NewSoftmax(env.provider)
	ctx := kernel.NewContext(env.stream, []*tensor.Tensor{vec}, []*tensor.Tensor{vec})
	err = s.Compute(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "2-D")
}

func TestNormalize(t *testing.T) {
	env := newOpsEnv(t)
	in := env.deviceMatrix(t, 2, 2, []float32{3, 4, 0, 0})
	out := env.deviceMatrix(t, 2, 2, nil)

	n := NewNormalize(env.provider, 1e-9)
	ctx := kernel.NewContext(env.stream, []*tensor.Tensor{in}, []*tensor.Tensor{out})
	require.NoError(t, n.Compute(ctx))

	got := flat32(t, out)
	require.InDelta(t, 0.6, got[0], 1e-6)
	require.InDelta(t, 0.8, got[1], 1e-6)
	norm := math32.Sqrt(got[0]*got[0] + got[1]*got[1])
	require.InDelta(t, 1.0, norm, 1e-6)
	// The zero row stays zero thanks to epsilon.
	require.Zero(t, got[2])
	require.Zero(t, got[3])

	// The scratch temporary went back to the arena.
	require.Equal(t, 1, env.provider.ScratchArena().FreeListSize())
}

func BenchmarkGather(b *testing.B) {
	rt := cpurt.New()
	device := cpurt.NewAllocator(accel.MemDevice, 0)
	registry := accel.NewTransferRegistry()
	cpurt.RegisterTransfers(registry)
	provider, err := kernel.NewProvider(rt, 0,
		kernel.WithPinnedAllocator(cpurt.NewAllocator(accel.MemHostPinned, 0)),
		kernel.WithDeviceAllocator(device),
		kernel.WithTransferRegistry(registry),
	)
	if err != nil {
		b.Fatal(err)
	}
	stream, err := provider.NewStream()
	if err != nil {
		b.Fatal(err)
	}
	defer func() {
		_ = stream.Close()
		_ = provider.Close()
	}()

	const rows, cols = 64, 128
	inBlock, err := device.Alloc(dtypes.Float32.SizeForDimensions(rows, cols))
	if err != nil {
		b.Fatal(err)
	}
	in, err := tensor.New(dtypes.Float32, []int{rows, cols}, inBlock)
	if err != nil {
		b.Fatal(err)
	}
	indices := make([]int32, rows)
	for i := range indices {
		indices[i] = int32(rows - 1 - i)
	}
	outBlock, err := device.Alloc(dtypes.Float32.SizeForDimensions(rows, cols))
	if err != nil {
		b.Fatal(err)
	}
	out, err := tensor.New(dtypes.Float32, []int{rows, cols}, outBlock)
	if err != nil {
		b.Fatal(err)
	}

	g := NewGather(provider, indices)
	ctx := kernel.NewContext(stream, []*tensor.Tensor{in}, []*tensor.Tensor{out})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := g.Compute(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
