package accel

import (
	"math/bits"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// minArenaClass is the smallest block the arena hands out, in bytes.
	minArenaClass = 256
)

// Arena is a caching allocator for short-lived device scratch blocks.
//
// Freed blocks are not returned to the underlying device allocator: they are parked on a
// per-size free list and handed out again, with sizes rounded up to powers of two. A
// block released while its tagging queue still has work in flight is recycled only after
// that work completes: the release is submitted as a command on the queue, so in-order
// execution guarantees every prior use of the memory has finished before reuse.
type Arena struct {
	device Allocator

	mu   sync.Mutex
	free map[int][]*Block
}

// NewArena creates an arena caching blocks from the given device allocator.
func NewArena(device Allocator) *Arena {
	return &Arena{device: device, free: make(map[int][]*Block)}
}

// classFor rounds nbytes up to the arena's size class.
func classFor(nbytes int) int {
	if nbytes <= minArenaClass {
		return minArenaClass
	}
	return 1 << bits.Len(uint(nbytes-1))
}

// Alloc returns a device block of at least nbytes. The block stays out of the arena's
// bookkeeping until Release is called for it.
func (a *Arena) Alloc(nbytes int, _ Queue) (*Block, error) {
	if nbytes < 0 {
		return nil, errors.Errorf("arena allocation of negative size %d", nbytes)
	}
	class := classFor(nbytes)

	a.mu.Lock()
	if list := a.free[class]; len(list) > 0 {
		b := list[len(list)-1]
		a.free[class] = list[:len(list)-1]
		a.mu.Unlock()
		return b, nil
	}
	a.mu.Unlock()

	b, err := a.device.Alloc(class)
	if err != nil {
		return nil, errors.WithMessagef(err, "arena allocating a %d-byte device block", class)
	}
	return b, nil
}

// Release parks the block for reuse once q has completed the commands issued so far.
// With a nil queue the block is recycled immediately; use that only when the caller has
// already synchronized.
func (a *Arena) Release(b *Block, q Queue) error {
	if b == nil {
		return nil
	}
	if q == nil {
		a.recycle(b)
		return nil
	}
	return q.Submit(func() error {
		a.recycle(b)
		return nil
	})
}

func (a *Arena) recycle(b *Block) {
	class := b.Len()
	a.mu.Lock()
	a.free[class] = append(a.free[class], b)
	a.mu.Unlock()
}

// FreeListSize returns the number of parked blocks across all size classes.
func (a *Arena) FreeListSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, list := range a.free {
		n += len(list)
	}
	return n
}

// Close frees every parked block back to the device allocator. Blocks still in use by
// kernels are the callers' responsibility.
func (a *Arena) Close() error {
	a.mu.Lock()
	free := a.free
	a.free = make(map[int][]*Block)
	a.mu.Unlock()

	for class, list := range free {
		for _, b := range list {
			if err := b.Free(); err != nil {
				// Non-fatal.
				klog.Errorf("Arena failed to free a %d-byte parked block: %v", class, err)
			}
		}
	}
	return nil
}
