package accel

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stream is the framework-level view of a device command queue.
//
// Beyond the queue itself it owns two things: the deferred-release list of pinned host
// blocks that must outlive in-flight asynchronous copies, and the cache of
// compute-library handles bound to this queue.
//
// A Stream has exactly one owner -- the runtime that created it; kernels hold non-owning
// references. The owner must not use a Stream from two goroutines at once, except for
// DeferHostRelease, which is safe for concurrent use: kernels running on different
// goroutines may legally write to the same stream.
type Stream struct {
	queue   Queue
	kind    DeviceKind
	factory HandleFactory

	mu       sync.Mutex
	deferred []*Block
	handles  map[LibraryKind]Handle
}

// NewStream wraps a queue on a device of the given kind. factory may be nil for streams
// that never need compute-library handles.
func NewStream(queue Queue, kind DeviceKind, factory HandleFactory) *Stream {
	return &Stream{queue: queue, kind: kind, factory: factory}
}

// Queue returns the underlying command queue. Nil-safe, so call sites can pass an
// optional stream through unconditionally.
func (s *Stream) Queue() Queue {
	if s == nil {
		return nil
	}
	return s.queue
}

// Kind returns the device kind the stream's commands execute on.
func (s *Stream) Kind() DeviceKind {
	if s == nil {
		return KindCPU
	}
	return s.kind
}

// DeferHostRelease transfers ownership of a host block into the stream's deferred-release
// queue. The block is freed by ReleaseDeferred, which the runtime calls only after
// confirming the stream has completed the work issued so far -- the block must not be
// freed or reused before then, which is why ownership moves instead of being released
// immediately.
//
// Only device-class streams accept deferred releases: on a host stream there is no
// asynchronous copy to outlive, so the call indicates a programming error.
func (s *Stream) DeferHostRelease(b *Block) error {
	if s == nil {
		return errors.New("DeferHostRelease on a nil stream")
	}
	if !s.kind.IsDevice() {
		return errors.Errorf("DeferHostRelease requires a device-class stream, got a %s stream", s.kind)
	}
	if b == nil {
		return errors.New("DeferHostRelease given a nil block")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferred = append(s.deferred, b)
	return nil
}

// DeferredCount returns the number of host blocks awaiting release.
func (s *Stream) DeferredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deferred)
}

// ReleaseDeferred frees every deferred host block, each exactly once. The caller must
// have confirmed that all commands enqueued on this stream have completed -- either by
// Stream.Synchronize or by a device-wide barrier.
func (s *Stream) ReleaseDeferred() error {
	s.mu.Lock()
	pending := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	var firstErr error
	for _, b := range pending {
		if err := b.Free(); err != nil && firstErr == nil {
			firstErr = errors.WithMessagef(err, "releasing deferred host block")
		}
	}
	return firstErr
}

// Synchronize drains the stream's queue and then releases the deferred host blocks.
func (s *Stream) Synchronize() error {
	if err := s.queue.Synchronize(); err != nil {
		return err
	}
	return s.ReleaseDeferred()
}

// Handle returns this stream's handle for the given library, creating and caching it on
// first use. Handles are keyed by stream identity and must not be shared across streams.
//
// Requesting a handle on a non-device stream is a programming error and fails fast
// rather than returning a useless handle.
func (s *Stream) Handle(kind LibraryKind) (Handle, error) {
	if s == nil {
		return nil, errors.New("requesting a compute-library handle on a nil stream")
	}
	if !s.kind.IsDevice() {
		return nil, errors.Errorf("compute-library handles require a device-class stream, got a %s stream", s.kind)
	}
	if s.factory == nil {
		return nil, errors.Errorf("stream has no handle factory to create a %s handle", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[kind]; ok {
		return h, nil
	}
	h, err := s.factory(kind, s.queue)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating the stream's %s handle", kind)
	}
	if s.handles == nil {
		s.handles = make(map[LibraryKind]Handle)
	}
	s.handles[kind] = h
	return h, nil
}

// Close synchronizes the stream, releases deferred host blocks and cached handles, and
// closes the underlying queue.
func (s *Stream) Close() error {
	if err := s.Synchronize(); err != nil {
		return err
	}
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()
	for kind, h := range handles {
		if err := h.Close(); err != nil {
			// Non-fatal.
			klog.Errorf("Failed to close stream's %s handle: %v", kind, err)
		}
	}
	return s.queue.Close()
}
