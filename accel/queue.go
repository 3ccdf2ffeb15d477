package accel

// Queue is an ordered, asynchronous device command queue.
//
// Commands submitted to a queue run strictly in submission order, asynchronously to the
// submitting goroutine. Ordering holds only within one queue: across queues nothing is
// guaranteed except at explicit synchronization points.
//
// A command's error does not surface at submission. It is recorded as the runtime's
// sticky fault and observed by polling Runtime.LastFault after synchronizing.
type Queue interface {
	// Submit enqueues a command. It returns an error only if the queue itself cannot
	// accept work (for example, it was closed); it never waits for the command to run.
	Submit(cmd func() error) error

	// Synchronize blocks the calling goroutine until every command submitted so far has
	// completed. A synchronization failure means the device or driver is compromised.
	Synchronize() error

	// Device returns the index of the device this queue executes on.
	Device() int

	// Close drains the queue and releases it. No commands may be submitted afterwards.
	Close() error
}

// Runtime is the device driver contract: enumeration, queue creation, the device-wide
// barrier and the sticky fault poll. Implementations must be safe for concurrent use.
type Runtime interface {
	// Name identifies the runtime implementation.
	Name() string

	// DeviceCount returns the number of devices the runtime exposes.
	DeviceCount() (int, error)

	// Properties describes the given device.
	Properties(device int) (Properties, error)

	// NewQueue creates an ordered command queue on the given device.
	NewQueue(device int) (Queue, error)

	// Synchronize blocks until all outstanding work on all queues of all devices has
	// completed. This is the device-wide barrier, not a per-queue join.
	Synchronize() error

	// LastFault returns the pending device fault and clears it, or nil when no fault is
	// pending. Faults are sticky: once recorded, the fault stays pending until polled,
	// regardless of how much later work succeeds.
	LastFault() *Fault
}
