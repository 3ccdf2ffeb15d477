package kernel

import (
	"math/bits"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/dtypes"
	"github.com/Scenerainc/onnxruntime/tensor"
)

// SyncPolicy selects the scope of the barrier Compute performs after the domain
// computation (see Base.Compute).
type SyncPolicy int32

const (
	// SyncDevice blocks until all outstanding work on the device completes. This is the
	// precision-over-throughput default: any device fault is attributed to the kernel
	// invocation that observes it, never to a later unrelated kernel, at the cost of
	// serializing the calling thread behind every stream.
	SyncDevice SyncPolicy = iota

	// SyncStream joins only the invocation's stream. Cheaper under concurrent
	// multi-stream load, but a fault raised by another stream's in-flight work may be
	// attributed to the wrong kernel.
	SyncStream
)

// Provider is the long-lived resource hub shared by every kernel bound to one device:
// the allocator set, device properties, the transfer registry, the compute-library
// handle factory and the caching scratch arena.
//
// A provider is injected explicitly at kernel construction -- it is not a singleton --
// and must be safe for concurrent use; kernels on different goroutines share it freely.
type Provider struct {
	runtime accel.Runtime
	device  int
	props   accel.Properties

	hostAlloc   accel.Allocator
	pinnedAlloc accel.Allocator
	deviceAlloc accel.Allocator
	scratch     *accel.Arena
	transfers   *accel.TransferRegistry
	factory     accel.HandleFactory
	syncPolicy  SyncPolicy

	mu           sync.Mutex
	defaultQueue accel.Queue
	defaults     map[accel.LibraryKind]accel.Handle
	ones         map[dtypes.DType]*onesEntry
}

type onesEntry struct {
	block *accel.Block
	count int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHostAllocator installs the pageable host allocator.
func WithHostAllocator(a accel.Allocator) ProviderOption {
	return func(p *Provider) { p.hostAlloc = a }
}

// WithPinnedAllocator installs the pinned-host allocator used for staging memory.
func WithPinnedAllocator(a accel.Allocator) ProviderOption {
	return func(p *Provider) { p.pinnedAlloc = a }
}

// WithDeviceAllocator installs the device allocator. The provider builds its caching
// scratch arena on top of it.
func WithDeviceAllocator(a accel.Allocator) ProviderOption {
	return func(p *Provider) { p.deviceAlloc = a }
}

// WithTransferRegistry installs the data-transfer service.
func WithTransferRegistry(r *accel.TransferRegistry) ProviderOption {
	return func(p *Provider) { p.transfers = r }
}

// WithHandleFactory installs the compute-library handle factory used by streams and by
// the provider's default handles.
func WithHandleFactory(f accel.HandleFactory) ProviderOption {
	return func(p *Provider) { p.factory = f }
}

// WithSyncPolicy overrides the post-compute barrier scope. The default is SyncDevice.
func WithSyncPolicy(policy SyncPolicy) ProviderOption {
	return func(p *Provider) { p.syncPolicy = policy }
}

// NewProvider creates a provider bound to one device of the runtime.
func NewProvider(rt accel.Runtime, device int, opts ...ProviderOption) (*Provider, error) {
	if rt == nil {
		return nil, errors.New("NewProvider requires a runtime")
	}
	props, err := rt.Properties(device)
	if err != nil {
		return nil, errors.WithMessagef(err, "querying properties of device %d", device)
	}
	p := &Provider{
		runtime:    rt,
		device:     device,
		props:      props,
		syncPolicy: SyncDevice,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.deviceAlloc != nil {
		p.scratch = accel.NewArena(p.deviceAlloc)
	}
	return p, nil
}

// Runtime returns the device runtime the provider is bound to.
func (p *Provider) Runtime() accel.Runtime { return p.runtime }

// DeviceID returns the index of the provider's device.
func (p *Provider) DeviceID() int { return p.device }

// Properties returns the device's properties.
func (p *Provider) Properties() accel.Properties { return p.props }

// SyncPolicy returns the configured post-compute barrier scope.
func (p *Provider) SyncPolicy() SyncPolicy { return p.syncPolicy }

// PinnedAllocator returns the pinned-host allocator, or nil when none is installed.
// Callers must treat a nil allocator as allocation failure, not as a zero-size source.
func (p *Provider) PinnedAllocator() accel.Allocator { return p.pinnedAlloc }

// HostAllocator returns the pageable host allocator, or nil.
func (p *Provider) HostAllocator() accel.Allocator { return p.hostAlloc }

// DeviceAllocator returns the device allocator, or nil.
func (p *Provider) DeviceAllocator() accel.Allocator { return p.deviceAlloc }

// ScratchArena returns the caching arena over the device allocator, or nil when the
// provider has no device allocator.
func (p *Provider) ScratchArena() *accel.Arena { return p.scratch }

// Transfer resolves the data-transfer service for a (source, destination) pair.
func (p *Provider) Transfer(src, dst accel.MemType) (accel.Transfer, error) {
	if p.transfers == nil {
		return nil, errors.New("provider has no transfer registry")
	}
	return p.transfers.Lookup(src, dst)
}

// NewStream creates a stream on the provider's device, wired with the provider's handle
// factory. The caller owns the stream.
func (p *Provider) NewStream() (*accel.Stream, error) {
	q, err := p.runtime.NewQueue(p.device)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating a queue on device %d", p.device)
	}
	return accel.NewStream(q, p.props.Kind, p.factory), nil
}

// DefaultHandle returns the provider-owned handle for the given library, for call sites
// that have no specific stream in hand. It is created lazily, bound to a private queue,
// and shared; prefer the per-stream handles for kernel work.
func (p *Provider) DefaultHandle(kind accel.LibraryKind) (accel.Handle, error) {
	if p.factory == nil {
		return nil, errors.Errorf("provider has no handle factory to create a default %s handle", kind)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.defaults[kind]; ok {
		return h, nil
	}
	if p.defaultQueue == nil {
		q, err := p.runtime.NewQueue(p.device)
		if err != nil {
			return nil, errors.WithMessagef(err, "creating the provider's default queue")
		}
		p.defaultQueue = q
	}
	h, err := p.factory(kind, p.defaultQueue)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating the default %s handle", kind)
	}
	if p.defaults == nil {
		p.defaults = make(map[accel.LibraryKind]accel.Handle)
	}
	p.defaults[kind] = h
	return h, nil
}

// ConstOnes returns a device block holding at least count ones of the given dtype,
// staged through the stream. The block is cached per dtype and grown on demand; it is
// owned by the provider, callers must not free it.
//
// Growth frees the previous block. That is safe because every kernel invocation ends in
// a barrier, so no earlier invocation still has the old block in flight.
func (p *Provider) ConstOnes(dtype dtypes.DType, count int, s *accel.Stream) (*accel.Block, error) {
	if count < 0 {
		return nil, errors.Errorf("ConstOnes of negative count %d", count)
	}
	if p.deviceAlloc == nil {
		return nil, errors.New("provider has no device allocator for ConstOnes")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry := p.ones[dtype]; entry != nil && entry.count >= count {
		return entry.block, nil
	}

	// Round up so repeated growth stays amortized.
	grown := 1 << bits.Len(uint(max(count, 1)-1))
	filled, err := onesHostSlice(dtype, grown)
	if err != nil {
		return nil, err
	}

	// Long-lived, so it bypasses the scratch arena.
	block, err := p.deviceAlloc.Reserve(dtype.SizeForDimensions(grown))
	if err != nil {
		return nil, errors.WithMessagef(err, "allocating a ConstOnes block of %d %s elements", grown, dtype)
	}
	if err := p.stageToDevice(filled, block, s); err != nil {
		if freeErr := block.Free(); freeErr != nil {
			klog.Errorf("Failed to free ConstOnes block after staging error: %v", freeErr)
		}
		return nil, err
	}

	if old := p.ones[dtype]; old != nil {
		if err := old.block.Free(); err != nil {
			klog.Errorf("Failed to free outgrown ConstOnes block: %v", err)
		}
	}
	if p.ones == nil {
		p.ones = make(map[dtypes.DType]*onesEntry)
	}
	p.ones[dtype] = &onesEntry{block: block, count: grown}
	return block, nil
}

// stageToDevice copies host bytes into a device block through a pinned staging block
// whose release is deferred to the stream.
func (p *Provider) stageToDevice(host []byte, dst *accel.Block, s *accel.Stream) error {
	if p.pinnedAlloc == nil {
		return errors.New("provider has no pinned-host allocator for staging")
	}
	staging, err := p.pinnedAlloc.Alloc(len(host))
	if err != nil {
		return errors.WithMessagef(err, "allocating %d bytes of pinned staging memory", len(host))
	}
	copy(staging.Bytes(), host)
	tr, err := p.Transfer(accel.MemHostPinned, accel.MemDevice)
	if err != nil {
		return err
	}
	if err := tr.CopyAsync(dst, staging, s.Queue()); err != nil {
		if freeErr := staging.Free(); freeErr != nil {
			klog.Errorf("Failed to free staging block after copy error: %v", freeErr)
		}
		return err
	}
	return s.DeferHostRelease(staging)
}

// CopyTensor resolves a transfer by the tensors' locations and issues the asynchronous
// copy on the stream.
func (p *Provider) CopyTensor(src, dst *tensor.Tensor, s *accel.Stream) error {
	if src == nil || dst == nil {
		return errors.New("CopyTensor given a nil tensor")
	}
	tr, err := p.Transfer(src.Location(), dst.Location())
	if err != nil {
		return err
	}
	return tr.CopyAsync(dst.Block(), src.Block(), s.Queue())
}

// Close releases provider-owned resources: default handles, the const-ones cache, the
// scratch arena and the default queue. Streams and kernels must be done first.
func (p *Provider) Close() error {
	p.mu.Lock()
	defaults := p.defaults
	p.defaults = nil
	ones := p.ones
	p.ones = nil
	defaultQueue := p.defaultQueue
	p.defaultQueue = nil
	p.mu.Unlock()

	for kind, h := range defaults {
		if err := h.Close(); err != nil {
			klog.Errorf("Failed to close the default %s handle: %v", kind, err)
		}
	}
	for dtype, entry := range ones {
		if err := entry.block.Free(); err != nil {
			klog.Errorf("Failed to free the %s ConstOnes block: %v", dtype, err)
		}
	}
	if p.scratch != nil {
		if err := p.scratch.Close(); err != nil {
			klog.Errorf("Failed to close the scratch arena: %v", err)
		}
	}
	if defaultQueue != nil {
		return defaultQueue.Close()
	}
	return nil
}

// onesHostSlice renders count ones of dtype as raw bytes.
func onesHostSlice(dtype dtypes.DType, count int) ([]byte, error) {
	buf := make([]byte, dtype.SizeForDimensions(count))
	b := accel.NewBlock(buf, accel.MemHost, nil)
	switch dtype {
	case dtypes.Float32:
		fill(accel.View[float32](b), 1)
	case dtypes.Float64:
		fill(accel.View[float64](b), 1)
	case dtypes.Int32:
		fill(accel.View[int32](b), 1)
	case dtypes.Int64:
		fill(accel.View[int64](b), 1)
	default:
		return nil, errors.Errorf("ConstOnes does not support dtype %s", dtype)
	}
	return buf, nil
}

func fill[T dtypes.Supported](s []T, value T) {
	for i := range s {
		s[i] = value
	}
}
