package accel

// DeviceKind classifies the execution context a stream's commands run on.
type DeviceKind int32

const (
	// KindCPU is the plain host CPU. Host streams carry no compute-library handles and
	// cannot receive deferred host releases.
	KindCPU DeviceKind = iota
	// KindGPU is a GPU-class accelerator.
	KindGPU
	// KindNPU is an NPU-class accelerator.
	KindNPU
)

// String implements fmt.Stringer.
func (k DeviceKind) String() string {
	switch k {
	case KindCPU:
		return "CPU"
	case KindGPU:
		return "GPU"
	case KindNPU:
		return "NPU"
	}
	return "UnknownDeviceKind"
}

// IsDevice reports whether the kind is an accelerator, as opposed to the host CPU.
func (k DeviceKind) IsDevice() bool {
	return k == KindGPU || k == KindNPU
}

// Properties describes one device, as reported by its runtime.
type Properties struct {
	Name string     `json:"name"`
	Kind DeviceKind `json:"kind"`

	// TotalMemory is the device memory size in bytes.
	TotalMemory uint64 `json:"total_memory"`

	MultiprocessorCount int `json:"multiprocessor_count"`
	MaxThreadsPerBlock  int `json:"max_threads_per_block"`

	// ComputeMajor and ComputeMinor describe the device's compute capability, when the
	// runtime has such a notion. Zero otherwise.
	ComputeMajor int `json:"compute_major"`
	ComputeMinor int `json:"compute_minor"`
}
