package cpurt

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// taskBacklog is the submission buffer of one queue. Submission blocks once the backlog
// is full, mimicking a saturated hardware command stream.
const taskBacklog = 256

// queue runs submitted commands on a dedicated goroutine, strictly in submission order.
type queue struct {
	rt     *Runtime
	device int

	tasks   chan func() error
	pending sync.WaitGroup
	closed  atomic.Bool
	drained chan struct{}
}

func newQueue(rt *Runtime, device int) *queue {
	q := &queue{
		rt:      rt,
		device:  device,
		tasks:   make(chan func() error, taskBacklog),
		drained: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *queue) loop() {
	for cmd := range q.tasks {
		if err := cmd(); err != nil {
			q.rt.recordFault(faultFromError(err))
		}
		q.pending.Done()
	}
	close(q.drained)
}

// Submit implements accel.Queue.
func (q *queue) Submit(cmd func() error) error {
	if cmd == nil {
		return errors.New("submit of a nil command")
	}
	if q.closed.Load() {
		return errors.New("submit on a closed queue")
	}
	q.pending.Add(1)
	q.tasks <- cmd
	return nil
}

// Synchronize implements accel.Queue: it blocks until every command submitted so far has
// completed.
func (q *queue) Synchronize() error {
	q.wait()
	return nil
}

func (q *queue) wait() {
	q.pending.Wait()
}

// Device implements accel.Queue.
func (q *queue) Device() int { return q.device }

// Close implements accel.Queue: it drains outstanding commands and stops the worker.
func (q *queue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	close(q.tasks)
	<-q.drained
	return nil
}
