// Package kernel implements the execution wrapper shared by accelerator compute kernels:
// synchronous fault promotion around kernel dispatch, scratch/pinned/transient buffer
// acquisition, per-stream compute-library handle access, and deferred release of host
// staging memory tied to stream completion.
//
// A concrete kernel embeds Base and implements Computer. The executor invokes Compute,
// which delegates to the kernel's ComputeInternal and then forces a barrier so that any
// asynchronous device fault is attributed to this invocation.
package kernel

import (
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/dtypes"
	"github.com/Scenerainc/onnxruntime/tensor"
)

// fatalf aborts the process. Synchronization failure means the device or driver is
// compromised and no further device state can be trusted.
var fatalf = klog.Fatalf

// Computer is the extension point each concrete kernel implements: the domain
// computation. It may enqueue asynchronous device work on the context's stream and must
// not assume that work has completed when it returns.
type Computer interface {
	ComputeInternal(ctx *Context) error
}

// Base is embedded by every concrete kernel. It carries the non-owning reference to the
// shared provider and implements Compute, the entrypoint the executor invokes. A kernel
// is an immutable configuration object: created once at graph-build time, invoked
// repeatedly, never mutating shared state.
type Base struct {
	provider *Provider
	op       Computer
}

// NewBase binds a concrete kernel to its provider. op is the kernel itself:
//
//	type Clip struct {
//		kernel.Base
//		min, max float32
//	}
//
//	func NewClip(p *kernel.Provider, min, max float32) *Clip {
//		c := &Clip{min: min, max: max}
//		c.Base = kernel.NewBase(p, c)
//		return c
//	}
func NewBase(p *Provider, op Computer) Base {
	return Base{provider: p, op: op}
}

// Provider returns the shared resource hub the kernel was bound to.
func (k *Base) Provider() *Provider { return k.provider }

// Properties returns the properties of the device the kernel executes on.
func (k *Base) Properties() accel.Properties { return k.provider.Properties() }

// Compute runs the kernel's domain computation, then forces a host/device barrier and
// promotes any pending device fault into this invocation's result.
//
// The barrier is a deliberate precision-over-throughput choice: device work runs
// asynchronously, so a fault would otherwise surface inside whichever kernel happens to
// synchronize next. Paying for the barrier on every call pins the fault to the kernel
// that caused it. A failed barrier aborts the process.
//
// A domain error from ComputeInternal is returned verbatim, never masked by a
// later-detected fault; the barrier still runs for attribution hygiene.
func (k *Base) Compute(ctx *Context) error {
	computeErr := k.op.ComputeInternal(ctx)

	if err := k.barrier(ctx); err != nil {
		fatalf("device synchronization failed after kernel execution: %+v", err)
		return err // Unreachable outside tests that stub out fatalf.
	}

	// The barrier confirmed completion of everything issued on the stream, so the
	// deferred staging blocks can go now.
	if s := ctx.Stream(); s != nil {
		if err := s.ReleaseDeferred(); err != nil {
			// Non-fatal: memory accounting noise, not a correctness problem.
			klog.Errorf("Failed to release deferred host blocks: %v", err)
		}
	}

	if computeErr != nil {
		return computeErr
	}
	if fault := k.provider.Runtime().LastFault(); fault != nil {
		return accel.FaultToError(fault)
	}
	return nil
}

// barrier synchronizes per the provider's policy: the whole device by default, or just
// the invocation's stream. With no stream in the context, the device-wide barrier is the
// only option.
func (k *Base) barrier(ctx *Context) error {
	if k.provider.SyncPolicy() == SyncStream {
		if q := ctx.Queue(); q != nil {
			return q.Synchronize()
		}
	}
	return k.provider.Runtime().Synchronize()
}

// sizeOf returns the byte size of one element of T.
func sizeOf[T dtypes.Supported]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// AllocPinned allocates count elements of T from the provider's pinned-host allocator.
// A missing allocator or a failed allocation is an error, never a zero-length buffer.
func AllocPinned[T dtypes.Supported](k *Base, count int) (*accel.Block, error) {
	alloc := k.provider.PinnedAllocator()
	if alloc == nil {
		return nil, errors.New("provider has no pinned-host allocator")
	}
	b, err := alloc.Alloc(count * sizeOf[T]())
	if err != nil {
		return nil, errors.WithMessagef(err, "allocating %d pinned elements", count)
	}
	return b, nil
}

// Scratch allocates count elements of T of device memory from the caching scratch
// arena, tagged with the stream whose completion gates the memory's reuse. Intended for
// short-lived intra-kernel temporaries; return them with ReleaseScratch.
func Scratch[T dtypes.Supported](k *Base, count int, s *accel.Stream) (*accel.Block, error) {
	arena := k.provider.ScratchArena()
	if arena == nil {
		return nil, errors.New("provider has no device allocator behind the scratch arena")
	}
	b, err := arena.Alloc(count*sizeOf[T](), s.Queue())
	if err != nil {
		return nil, errors.WithMessagef(err, "allocating %d scratch elements", count)
	}
	return b, nil
}

// TransientScratch allocates count elements of T of device memory bypassing the caching
// arena, via the allocator's Reserve path. Use it for memory handed to a library that
// manages its own lifetime assumptions and must not be recycled by arena bookkeeping.
func TransientScratch[T dtypes.Supported](k *Base, count int) (*accel.Block, error) {
	alloc := k.provider.DeviceAllocator()
	if alloc == nil {
		return nil, errors.New("provider has no device allocator")
	}
	b, err := alloc.Reserve(count * sizeOf[T]())
	if err != nil {
		return nil, errors.WithMessagef(err, "reserving %d transient scratch elements", count)
	}
	return b, nil
}

// ReleaseScratch returns a scratch block to the arena, gated on the stream's completion.
func (k *Base) ReleaseScratch(b *accel.Block, s *accel.Stream) error {
	arena := k.provider.ScratchArena()
	if arena == nil {
		return errors.New("provider has no scratch arena")
	}
	return arena.Release(b, s.Queue())
}

// DeferHostRelease transfers ownership of a host block into the stream's
// deferred-release queue; the runtime frees it only after the stream completes. The
// stream must be device-class.
func (k *Base) DeferHostRelease(b *accel.Block, s *accel.Stream) error {
	return s.DeferHostRelease(b)
}

// StreamHandle returns the context stream's handle for the given compute library,
// lazily created and cached per stream.
func (k *Base) StreamHandle(ctx *Context, kind accel.LibraryKind) (accel.Handle, error) {
	return ctx.Stream().Handle(kind)
}

// DefaultHandle returns the provider's shared handle for call sites without a stream.
func (k *Base) DefaultHandle(kind accel.LibraryKind) (accel.Handle, error) {
	return k.provider.DefaultHandle(kind)
}

// CopyTensor issues an asynchronous copy between two tensors on the stream, resolving
// the transfer by the tensors' memory locations.
func (k *Base) CopyTensor(src, dst *tensor.Tensor, s *accel.Stream) error {
	return k.provider.CopyTensor(src, dst, s)
}

// ConstOnes returns the provider's cached device block of at least count ones.
func (k *Base) ConstOnes(dtype dtypes.DType, count int, s *accel.Stream) (*accel.Block, error) {
	return k.provider.ConstOnes(dtype, count, s)
}
