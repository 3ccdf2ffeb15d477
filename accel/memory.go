package accel

import (
	"unsafe"

	"github.com/Scenerainc/onnxruntime/dtypes"
)

// MemType classifies a memory location. Transfers are keyed by (source, destination)
// MemType pairs.
type MemType int32

const (
	// MemHost is ordinary pageable host memory.
	MemHost MemType = iota
	// MemHostPinned is page-locked host memory. Asynchronous host/device copies require
	// the source pages to stay mapped for the duration of the copy, which only pinned
	// memory guarantees.
	MemHostPinned
	// MemDevice is device-resident memory.
	MemDevice
)

// String implements fmt.Stringer.
func (m MemType) String() string {
	switch m {
	case MemHost:
		return "Host"
	case MemHostPinned:
		return "HostPinned"
	case MemDevice:
		return "Device"
	}
	return "UnknownMemType"
}

// Allocator hands out memory blocks of one memory type. Implementations must be safe for
// concurrent use: allocators are shared by all kernels bound to a provider.
type Allocator interface {
	// MemType returns the location of the memory this allocator manages.
	MemType() MemType

	// Alloc returns a block of at least nbytes. Implementations may route this through a
	// caching arena. A failed allocation returns a nil block and an error, never a
	// zero-length block.
	Alloc(nbytes int) (*Block, error)

	// Reserve returns a block of at least nbytes, bypassing any caching arena the
	// allocator may keep behind Alloc. Use it for memory whose lifetime is handed to a
	// third party that makes its own assumptions about it.
	Reserve(nbytes int) (*Block, error)

	// Free returns a block to the allocator. Freeing an already-released block is a no-op.
	Free(b *Block) error
}

// Block is one contiguous allocation. It is owned by exactly one party at a time: the
// allocator's caller until the block is freed or its ownership is explicitly transferred
// (see Stream.DeferHostRelease).
type Block struct {
	data  []byte
	mem   MemType
	owner Allocator
}

// NewBlock wraps backing storage in a Block. It is meant for Allocator implementations;
// kernel code receives blocks from allocators and never constructs them.
func NewBlock(data []byte, mem MemType, owner Allocator) *Block {
	return &Block{data: data, mem: mem, owner: owner}
}

// Bytes returns the raw backing bytes. Nil after the block has been released.
func (b *Block) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the block size in bytes, 0 after release.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// MemType returns the location of the block's memory.
func (b *Block) MemType() MemType {
	if b == nil {
		return MemHost
	}
	return b.mem
}

// Free returns the block to its owning allocator. Freeing a nil or already-released
// block is a no-op.
func (b *Block) Free() error {
	if b == nil || b.owner == nil {
		return nil
	}
	return b.owner.Free(b)
}

// Detach invalidates the block, dropping its backing storage and owner reference.
// Allocator implementations call this from Free; it is idempotent.
func (b *Block) Detach() {
	if b == nil {
		return
	}
	b.data = nil
	b.owner = nil
}

// View reinterprets the block's bytes as a slice of T. The slice aliases the block's
// storage and is valid only while the block is.
func View[T dtypes.Supported](b *Block) []T {
	if b == nil || len(b.data) == 0 {
		return nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	n := len(b.data) / elemSize
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b.data))), n)
}
