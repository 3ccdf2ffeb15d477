package kernel

import (
	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/tensor"
)

// Context is one kernel invocation's view of the executor state: the active command
// stream and the domain tensors. The executor owns everything the context points at; the
// context is valid only for the duration of the invocation.
type Context struct {
	stream  *accel.Stream
	inputs  []*tensor.Tensor
	outputs []*tensor.Tensor
}

// NewContext assembles an invocation context. stream may be nil for host-only execution.
func NewContext(stream *accel.Stream, inputs, outputs []*tensor.Tensor) *Context {
	return &Context{stream: stream, inputs: inputs, outputs: outputs}
}

// Stream returns the invocation's command stream, possibly nil.
func (c *Context) Stream() *accel.Stream { return c.stream }

// Queue returns the raw command queue behind the stream, or nil when there is no stream.
func (c *Context) Queue() accel.Queue {
	return c.stream.Queue()
}

// NumInputs returns the number of input tensors.
func (c *Context) NumInputs() int { return len(c.inputs) }

// NumOutputs returns the number of output tensors.
func (c *Context) NumOutputs() int { return len(c.outputs) }

// Input returns the i-th input tensor, or nil when out of range.
func (c *Context) Input(i int) *tensor.Tensor {
	if i < 0 || i >= len(c.inputs) {
		return nil
	}
	return c.inputs[i]
}

// Output returns the i-th output tensor, or nil when out of range.
func (c *Context) Output(i int) *tensor.Tensor {
	if i < 0 || i >= len(c.outputs) {
		return nil
	}
	return c.outputs[i]
}
