package cpurt

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Scenerainc/onnxruntime/accel"
)

// AllocatorStats counts an allocator's activity. Useful to verify release discipline:
// every staged host block must be freed exactly once.
type AllocatorStats struct {
	Allocs       int64
	Frees        int64
	InUseBytes   int64
	FailedAllocs int64
}

// Allocator hands out host-backed blocks tagged with one memory type. A byte limit of
// zero means unlimited.
type Allocator struct {
	mem   accel.MemType
	limit int64

	mu    sync.Mutex
	stats AllocatorStats
}

// NewAllocator creates an allocator for the given memory type, failing allocations that
// would push the in-use total past limit bytes (0 = unlimited).
func NewAllocator(mem accel.MemType, limit int64) *Allocator {
	return &Allocator{mem: mem, limit: limit}
}

// MemType implements accel.Allocator.
func (a *Allocator) MemType() accel.MemType { return a.mem }

// Alloc implements accel.Allocator.
func (a *Allocator) Alloc(nbytes int) (*accel.Block, error) {
	return a.alloc(nbytes, "Alloc")
}

// Reserve implements accel.Allocator. The host-backed allocator has no arena behind
// Alloc, so Reserve differs only in intent; the distinction matters to arena-backed
// device allocators.
func (a *Allocator) Reserve(nbytes int) (*accel.Block, error) {
	return a.alloc(nbytes, "Reserve")
}

func (a *Allocator) alloc(nbytes int, what string) (*accel.Block, error) {
	if nbytes < 0 {
		return nil, errors.Errorf("%s of negative size %d from the %s allocator", what, nbytes, a.mem)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.stats.InUseBytes+int64(nbytes) > a.limit {
		a.stats.FailedAllocs++
		return nil, errors.Errorf("%s allocator out of memory: %d bytes requested, %d of %d in use",
			a.mem, nbytes, a.stats.InUseBytes, a.limit)
	}
	a.stats.Allocs++
	a.stats.InUseBytes += int64(nbytes)
	klog.V(2).Infof("cpurt %s allocator: %s %d bytes (%d in use)", a.mem, what, nbytes, a.stats.InUseBytes)
	return accel.NewBlock(make([]byte, nbytes), a.mem, a), nil
}

// Free implements accel.Allocator. Freeing an already-released block is a no-op.
func (a *Allocator) Free(b *accel.Block) error {
	if b == nil || b.Bytes() == nil {
		return nil
	}
	a.mu.Lock()
	a.stats.Frees++
	a.stats.InUseBytes -= int64(b.Len())
	a.mu.Unlock()
	b.Detach()
	return nil
}

// Stats returns a snapshot of the allocator's counters.
func (a *Allocator) Stats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
