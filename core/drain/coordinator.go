package drain

import (
	"sync/atomic"

	transferqueue "github.com/sushant-115/draino/core/write_engine/transfer_queue"
)

// State is the shutdown phase of a run.
type State int32

const (
	// StateRunning: reader and writer both active.
	StateRunning State = iota
	// StateDraining: input exhausted, writer emptying the buffered queue.
	StateDraining
	// StateDone: writer exited after draining; only the tail write may follow.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Coordinator owns the termination flag. Setting it closes the buffered queue
// so a writer blocked in Dequeue wakes up and re-checks its loop condition.
type Coordinator struct {
	terminated atomic.Bool
	state      atomic.Int32
	buffered   *transferqueue.Queue
}

func newCoordinator(buffered *transferqueue.Queue) *Coordinator {
	return &Coordinator{buffered: buffered}
}

// Terminate sets the flag. Only the first call has an effect.
func (c *Coordinator) Terminate() {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}
	c.state.Store(int32(StateDraining))
	c.buffered.Close()
}

// Terminated reports whether the reader has exhausted its input.
func (c *Coordinator) Terminated() bool { return c.terminated.Load() }

func (c *Coordinator) State() State { return State(c.state.Load()) }

func (c *Coordinator) markDone() { c.state.Store(int32(StateDone)) }

func (c *Coordinator) reset() {
	c.terminated.Store(false)
	c.state.Store(int32(StateRunning))
}
