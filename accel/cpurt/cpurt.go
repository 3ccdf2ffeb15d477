// Package cpurt implements the accel contracts in software, on the host CPU.
//
// Queues are goroutines draining an ordered task channel, so submission order is
// execution order, exactly like a hardware command stream. Memory of every location is
// ordinary host memory, tagged with the location it stands in for. The first error
// returned by an asynchronous command becomes the runtime's sticky fault, observed by
// polling LastFault after synchronization.
//
// The package lets the kernel execution layer run -- and be tested -- without
// accelerator hardware, and doubles as the reference for what a hardware-backed runtime
// must provide.
package cpurt

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
)

// Runtime is a software accel.Runtime exposing a single emulated device.
type Runtime struct {
	props accel.Properties

	mu     sync.Mutex
	queues []*queue
	fault  *accel.Fault
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithDeviceName overrides the emulated device's reported name.
func WithDeviceName(name string) Option {
	return func(r *Runtime) { r.props.Name = name }
}

// WithKind overrides the emulated device's kind. The default is KindGPU, since the
// runtime stands in for an accelerator.
func WithKind(kind accel.DeviceKind) Option {
	return func(r *Runtime) { r.props.Kind = kind }
}

// New creates a software runtime presenting itself as one GPU-class device.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		props: accel.Properties{
			Name:                "cpurt emulated device",
			Kind:                accel.KindGPU,
			MultiprocessorCount: runtime.NumCPU(),
			MaxThreadsPerBlock:  1024,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements accel.Runtime.
func (r *Runtime) Name() string { return "cpurt" }

// DeviceCount implements accel.Runtime.
func (r *Runtime) DeviceCount() (int, error) { return 1, nil }

// Properties implements accel.Runtime.
func (r *Runtime) Properties(device int) (accel.Properties, error) {
	if device != 0 {
		return accel.Properties{}, errors.Errorf("cpurt exposes a single device, got device=%d", device)
	}
	return r.props, nil
}

// NewQueue implements accel.Runtime.
func (r *Runtime) NewQueue(device int) (accel.Queue, error) {
	if device != 0 {
		return nil, errors.Errorf("cpurt exposes a single device, got device=%d", device)
	}
	q := newQueue(r, device)
	r.mu.Lock()
	r.queues = append(r.queues, q)
	r.mu.Unlock()
	return q, nil
}

// Synchronize implements accel.Runtime: it joins every queue created so far, the
// device-wide barrier.
func (r *Runtime) Synchronize() error {
	r.mu.Lock()
	queues := make([]*queue, len(r.queues))
	copy(queues, r.queues)
	r.mu.Unlock()
	for _, q := range queues {
		q.wait()
	}
	return nil
}

// LastFault implements accel.Runtime: it returns the pending fault and clears it.
func (r *Runtime) LastFault() *accel.Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.fault
	r.fault = nil
	return f
}

// InjectFault records a fault as if an asynchronous command had failed. Meant for
// diagnostics and tests of the fault-promotion path.
func (r *Runtime) InjectFault(code accel.ErrorCode, message string) {
	r.recordFault(accel.NewFault(code, "%s", message))
}

// recordFault keeps the oldest unobserved fault; later faults are dropped until the
// pending one is polled.
func (r *Runtime) recordFault(f *accel.Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fault == nil {
		r.fault = f
	}
}

// faultFromError normalizes a command error into a fault.
func faultFromError(err error) *accel.Fault {
	var f *accel.Fault
	if errors.As(err, &f) {
		return f
	}
	return accel.NewFault(accel.ErrUnknown, "%s", err.Error())
}
