package accel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodeStrings(t *testing.T) {
	require.Equal(t, "None", ErrNone.String())
	require.Equal(t, "IllegalAddress", ErrIllegalAddress.String())
	require.Equal(t, "Unknown", ErrUnknown.String())
	require.Equal(t, "ErrorCode(99)", ErrorCode(99).String())

	code, err := ErrorCodeString("OutOfMemory")
	require.NoError(t, err)
	require.Equal(t, ErrOutOfMemory, code)
	code, err = ErrorCodeString("launchfailure")
	require.NoError(t, err)
	require.Equal(t, ErrLaunchFailure, code)
	_, err = ErrorCodeString("NotAnError")
	require.Error(t, err)

	require.True(t, ErrInvalidValue.IsAErrorCode())
	require.False(t, ErrorCode(99).IsAErrorCode())
	require.Len(t, ErrorCodeValues(), 7)
}

func TestFaultToError(t *testing.T) {
	require.NoError(t, FaultToError(nil))

	fault := NewFault(ErrIllegalAddress, "an illegal memory access was encountered")
	err := FaultToError(fault)
	require.Error(t, err)
	require.Contains(t, err.Error(), "IllegalAddress")
	require.Contains(t, err.Error(), "code=2")
	require.Contains(t, err.Error(), "an illegal memory access was encountered")

	// Fault is itself an error, so device commands can return it directly.
	require.Contains(t, error(fault).Error(), "IllegalAddress")
}
