package accel

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a class of device fault.
//
//go:generate go tool enumer -type=ErrorCode -trimprefix=Err
type ErrorCode int32

const (
	ErrNone ErrorCode = iota
	ErrOutOfMemory
	ErrIllegalAddress
	ErrInvalidValue
	ErrLaunchFailure
	ErrNotSupported
	ErrUnknown
)

// Fault is a device-side error. Device work executes asynchronously, so a fault is
// decoupled in time from the operation that caused it: it surfaces only when the runtime
// is polled after synchronization (see Runtime.LastFault).
type Fault struct {
	Code    ErrorCode
	Message string
}

// NewFault creates a Fault with the given code and formatted message.
func NewFault(code ErrorCode, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface, so device commands can return a Fault directly.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// FaultToError converts a pending fault into a Go error carrying the fault's code, name
// and message, with a stack trace attached. A nil fault converts to nil.
func FaultToError(f *Fault) error {
	if f == nil {
		return nil
	}
	return errors.Errorf("device error %s (code=%d): %s", f.Code, int(f.Code), f.Message)
}
