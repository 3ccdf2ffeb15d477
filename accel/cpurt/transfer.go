package cpurt

import (
	"github.com/pkg/errors"

	"github.com/Scenerainc/onnxruntime/accel"
)

// transfer copies between host-backed locations by submitting an ordered byte copy on
// the destination queue.
type transfer struct{}

// CopyAsync implements accel.Transfer. The source and destination views are captured at
// submission; the ownership rules (deferred release of the source) keep them valid until
// the queue confirms completion.
func (transfer) CopyAsync(dst, src *accel.Block, q accel.Queue) error {
	if q == nil {
		return errors.New("CopyAsync requires a queue")
	}
	if src == nil || dst == nil {
		return errors.New("CopyAsync given a nil block")
	}
	srcBytes := src.Bytes()
	dstBytes := dst.Bytes()
	if len(dstBytes) < len(srcBytes) {
		return errors.Errorf("CopyAsync destination too small: %d bytes into %d", len(srcBytes), len(dstBytes))
	}
	return q.Submit(func() error {
		copy(dstBytes, srcBytes)
		return nil
	})
}

// RegisterTransfers installs the copies cpurt supports -- every pairing of its
// host-backed locations -- into the registry.
func RegisterTransfers(reg *accel.TransferRegistry) {
	locations := []accel.MemType{accel.MemHost, accel.MemHostPinned, accel.MemDevice}
	for _, src := range locations {
		for _, dst := range locations {
			reg.Register(src, dst, transfer{})
		}
	}
}
