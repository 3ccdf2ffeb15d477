package accel

// LibraryKind identifies a compute-library family. These libraries require one handle
// per concurrent execution context, which is why handles are cached per stream and never
// shared globally.
type LibraryKind int32

const (
	// LibBlas is the dense linear-algebra library.
	LibBlas LibraryKind = iota
	// LibDNN is the neural-network primitives library.
	LibDNN
)

// String implements fmt.Stringer.
func (k LibraryKind) String() string {
	switch k {
	case LibBlas:
		return "Blas"
	case LibDNN:
		return "DNN"
	}
	return "UnknownLibrary"
}

// Handle is an opaque compute-library handle bound to one command queue. The concrete
// operations a handle offers are runtime-specific; call sites assert the capability
// interfaces they need.
type Handle interface {
	Kind() LibraryKind
	Close() error
}

// HandleFactory creates a library handle bound to the given queue.
type HandleFactory func(kind LibraryKind, q Queue) (Handle, error)
