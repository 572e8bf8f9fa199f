package compute

import (
	"fmt"
	"sync"
)

// CommandKind identifies a command placed on a CommandQueue.
type CommandKind int

const (
	// CommandAcquire transfers a shared buffer from graphics to compute.
	CommandAcquire CommandKind = iota
	// CommandDispatch runs a kernel.
	CommandDispatch
	// CommandRelease transfers a shared buffer from compute back to graphics.
	CommandRelease
)

func (k CommandKind) String() string {
	switch k {
	case CommandAcquire:
		return "acquire"
	case CommandDispatch:
		return "dispatch"
	case CommandRelease:
		return "release"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a record of one command accepted by a CommandQueue.
type Command struct {
	// Seq is the 1-based position of the command in submission order.
	Seq uint64
	// Kind is the command kind.
	Kind CommandKind
	// Target names the kernel for dispatches and the buffer label otherwise.
	Target string
	// BufferID is the graphics ID of the buffer for acquire and release, 0 for dispatches.
	BufferID uint32
}

// CommandQueue is the in-order queue of a ComputeContext.
type CommandQueue interface {
	// Context returns the context the queue belongs to.
	//
	// Returns:
	//   - ComputeContext: the owning context
	Context() ComputeContext

	// Finish blocks until every command submitted so far has completed.
	//
	// Returns:
	//   - error: an error if the device failed to complete the work
	Finish() error

	// Commands returns the most recent commands in submission order.
	//
	// Returns:
	//   - []Command: a copy of the retained history
	Commands() []Command
}

type commandQueue struct {
	mu      sync.Mutex
	ctx     *computeContext
	seq     uint64
	limit   int
	history []Command
}

var _ CommandQueue = &commandQueue{}

func newCommandQueue(ctx *computeContext, limit int) *commandQueue {
	return &commandQueue{
		ctx:   ctx,
		limit: limit,
	}
}

func (q *commandQueue) Context() ComputeContext {
	return q.ctx
}

func (q *commandQueue) Finish() error {
	return q.ctx.backend.finish()
}

func (q *commandQueue) Commands() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Command, len(q.history))
	copy(out, q.history)
	return out
}

// enqueue runs submit, if any, and records the command once it has been accepted.
func (q *commandQueue) enqueue(kind CommandKind, target string, bufferID uint32, submit func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if submit != nil {
		if err := submit(); err != nil {
			return err
		}
	}

	q.seq++
	q.history = append(q.history, Command{Seq: q.seq, Kind: kind, Target: target, BufferID: bufferID})
	if over := len(q.history) - q.limit; over > 0 {
		q.history = append(q.history[:0], q.history[over:]...)
	}
	return nil
}

// queueOf unwraps a CommandQueue and checks it belongs to ctx.
func queueOf(q CommandQueue, ctx *computeContext) (*commandQueue, error) {
	cq, ok := q.(*commandQueue)
	if !ok || cq == nil {
		return nil, fmt.Errorf("%w: %T was not created by a ContextBinder", ErrContextMismatch, q)
	}
	if cq.ctx != ctx {
		return nil, fmt.Errorf("%w: queue of context %s", ErrContextMismatch, cq.ctx.id)
	}
	return cq, nil
}
