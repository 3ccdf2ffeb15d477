package accel

import (
	"sync"

	"github.com/pkg/errors"
)

// Transfer copies bytes between two memory locations, asynchronously on a queue. The
// source block must stay valid until the queue confirms completion; see
// Stream.DeferHostRelease for the host-side ownership discipline this implies.
type Transfer interface {
	// CopyAsync enqueues a copy of src's bytes into dst on q. dst must be at least as
	// large as src. The copy has not run when CopyAsync returns.
	CopyAsync(dst, src *Block, q Queue) error
}

// TransferRegistry resolves a Transfer by (source, destination) memory type.
// It is safe for concurrent use.
type TransferRegistry struct {
	mu     sync.RWMutex
	byPair map[[2]MemType]Transfer
}

// NewTransferRegistry creates an empty registry.
func NewTransferRegistry() *TransferRegistry {
	return &TransferRegistry{byPair: make(map[[2]MemType]Transfer)}
}

// Register installs the transfer for the (src, dst) pair, replacing any previous one.
func (r *TransferRegistry) Register(src, dst MemType, t Transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPair[[2]MemType{src, dst}] = t
}

// Lookup returns the transfer registered for the (src, dst) pair.
func (r *TransferRegistry) Lookup(src, dst MemType) (Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byPair[[2]MemType{src, dst}]
	if !ok {
		return nil, errors.Errorf("no transfer registered for %s to %s copies", src, dst)
	}
	return t, nil
}
