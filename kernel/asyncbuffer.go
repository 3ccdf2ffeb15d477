package kernel

import (
	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/dtypes"
)

// AsyncBuffer stages host values in pinned memory and copies them into device memory
// asynchronously, on a caller-supplied stream.
//
// Asynchronous host-to-device copies require a pinned source, and the source must stay
// valid until the stream has drained the copy. IssueCopy therefore does not free the
// pinned block: it transfers ownership into the stream's deferred-release queue, and the
// runtime frees it after stream completion.
//
// The buffer moves through three states: empty (zero value), staged (host block
// populated), and issued (device copy enqueued, host block surrendered). The host view
// is valid only while staged; reading it after IssueCopy is a usage error and the
// accessor returns nil to guard against reuse of the surrendered pointer.
type AsyncBuffer[T dtypes.Supported] struct {
	kernel *Base
	host   *accel.Block // Owned exclusively until the copy is issued.
	device *accel.Block
	count  int
}

// NewAsyncBuffer stages room for count elements, zero-initialized.
func NewAsyncBuffer[T dtypes.Supported](k *Base, count int) (*AsyncBuffer[T], error) {
	b := &AsyncBuffer[T]{kernel: k}
	host, err := AllocPinned[T](k, count)
	if err != nil {
		return nil, errors.WithMessagef(err, "staging an async buffer of %d elements", count)
	}
	b.host = host
	b.count = count
	return b, nil
}

// NewAsyncBufferFill stages count copies of value.
func NewAsyncBufferFill[T dtypes.Supported](k *Base, value T, count int) (*AsyncBuffer[T], error) {
	b, err := NewAsyncBuffer[T](k, count)
	if err != nil {
		return nil, err
	}
	for i, view := 0, b.HostView(); i < count; i++ {
		view[i] = value
	}
	return b, nil
}

// NewAsyncBufferFromSlice stages a copy of src.
func NewAsyncBufferFromSlice[T dtypes.Supported](k *Base, src []T) (*AsyncBuffer[T], error) {
	b, err := NewAsyncBuffer[T](k, len(src))
	if err != nil {
		return nil, err
	}
	copy(b.HostView(), src)
	return b, nil
}

// Count returns the number of staged elements.
func (b *AsyncBuffer[T]) Count() int { return b.count }

// HostView returns the staged host elements. It returns nil once IssueCopy has
// surrendered the pinned block: the memory now belongs to the stream's deferred-release
// queue and must not be reused.
func (b *AsyncBuffer[T]) HostView() []T {
	if b.host == nil {
		return nil
	}
	return accel.View[T](b.host)[:b.count]
}

// DeviceBlock returns the device copy. Nil until IssueCopy succeeds.
func (b *AsyncBuffer[T]) DeviceBlock() *accel.Block { return b.device }

// DeviceView returns a typed view of the device copy. The elements are defined only
// after the issuing stream has completed the copy.
func (b *AsyncBuffer[T]) DeviceView() []T {
	if b.device == nil {
		return nil
	}
	return accel.View[T](b.device)[:b.count]
}

// IssueCopy allocates a matching device block from the scratch arena, enqueues the
// asynchronous host-to-device copy on s, and hands the pinned block to s's
// deferred-release queue. An empty buffer is a no-op success.
//
// If issuance fails, the buffer keeps ownership of the host block and nothing is
// enqueued for release.
func (b *AsyncBuffer[T]) IssueCopy(s *accel.Stream) error {
	if b.host == nil {
		return nil
	}
	if s == nil {
		return errors.New("IssueCopy requires a stream")
	}
	// The ownership handoff below must not fail after the copy is in flight, so the
	// stream class is checked up front.
	if !s.Kind().IsDevice() {
		return errors.Errorf("IssueCopy requires a device-class stream, got a %s stream", s.Kind())
	}
	k := b.kernel

	device, err := Scratch[T](k, b.count, s)
	if err != nil {
		return err
	}
	transfer, err := k.provider.Transfer(accel.MemHostPinned, accel.MemDevice)
	if err != nil {
		return err
	}
	if err := transfer.CopyAsync(device, b.host, s.Queue()); err != nil {
		return errors.WithMessagef(err, "issuing the host-to-device copy of %d elements", b.count)
	}

	host := b.host
	b.host = nil // Staged state ends here; the host view is gone.
	b.device = device
	if err := s.DeferHostRelease(host); err != nil {
		return err
	}
	return nil
}
