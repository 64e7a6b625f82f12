// Package dispatch implements the node's Dispatch Server (C5): a
// listening socket that decodes one batch per connection, appends it to
// a single shared NodeState, and waits for the executor to drain it
// before replying. Grounded on the teacher's shared-state-under-one-mutex
// pattern (services/hal/internal/service holds workers/results/devices
// centrally) and, per spec.md §9's explicit instruction to replace the
// busy-wait completion signal, a sync.Cond guarding NodeState's queue.
package dispatch

import (
	"sync"

	"github.com/PineWarbler/iosim-go/internal/entry"
)

// NodeState groups every piece of node-side mutable state the original
// kept as module-level globals (command queue, out-queue, error list,
// mutex) into one value owned jointly by the dispatch server and the
// executor (spec.md §9, "Global mutable state").
type NodeState struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []entry.Entry
	inFlight int // entries popped but not yet pushed to out/errs
	out      []entry.Entry
	errs     []entry.Error
	stopped  bool

	errorStackMaxLen int
}

// NewNodeState creates an empty NodeState. errorStackMaxLen bounds the
// error list (spec.md §6 runtime_settings.error_stack_max_len); 0 means
// unbounded.
func NewNodeState(errorStackMaxLen int) *NodeState {
	ns := &NodeState{errorStackMaxLen: errorStackMaxLen}
	ns.cond = sync.NewCond(&ns.mu)
	return ns
}

// Enqueue appends a decoded batch's entries to the shared command queue
// (spec.md §4.5 step 2) and wakes the executor.
func (ns *NodeState) Enqueue(entries []entry.Entry) {
	ns.mu.Lock()
	ns.queue = append(ns.queue, entries...)
	ns.mu.Unlock()
	ns.cond.Broadcast()
}

// WaitDrained blocks until the command queue is empty AND every popped
// entry has been fully processed (its result or error pushed). "Drained"
// therefore means "executor finished this batch", not merely "executor
// has seen every entry" — spec.md §4.5 step 3 / §4.6 step 6 require the
// queue be treated as cleared only once all entries are processed. It
// must not be called while holding any other lock.
func (ns *NodeState) WaitDrained() {
	ns.mu.Lock()
	for (len(ns.queue) > 0 || ns.inFlight > 0) && !ns.stopped {
		ns.cond.Wait()
	}
	ns.mu.Unlock()
}

// PopFront removes and returns the head of the command queue in FIFO
// order. The entry counts as in-flight until the executor reports it
// done via Done, so a handler blocked in WaitDrained cannot observe
// "drained" until the entry's result or error has actually been pushed.
// It blocks while the queue is empty; ok is false only once the queue is
// empty and Stop has been called.
func (ns *NodeState) PopFront() (e entry.Entry, ok bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	for len(ns.queue) == 0 {
		if ns.stopped {
			return entry.Entry{}, false
		}
		ns.cond.Wait()
	}
	e = ns.queue[0]
	ns.queue = ns.queue[1:]
	ns.inFlight++
	ok = true
	return e, ok
}

// Done marks one PopFront'd entry as fully processed (its result/error
// already pushed), waking any handler blocked in WaitDrained once both
// the queue and the in-flight count reach zero.
func (ns *NodeState) Done() {
	ns.mu.Lock()
	ns.inFlight--
	drained := len(ns.queue) == 0 && ns.inFlight == 0
	ns.mu.Unlock()
	if drained {
		ns.cond.Broadcast()
	}
}

// Stop releases every goroutine blocked in PopFront or WaitDrained.
func (ns *NodeState) Stop() {
	ns.mu.Lock()
	ns.stopped = true
	ns.mu.Unlock()
	ns.cond.Broadcast()
}

// PushResult appends a value-response entry to the out-queue.
func (ns *NodeState) PushResult(e entry.Entry) {
	ns.mu.Lock()
	ns.out = append(ns.out, e)
	ns.mu.Unlock()
}

// PushError appends an error, trimming the oldest entries if the
// configured max length is exceeded.
func (ns *NodeState) PushError(e entry.Error) {
	ns.mu.Lock()
	ns.errs = append(ns.errs, e)
	if ns.errorStackMaxLen > 0 && len(ns.errs) > ns.errorStackMaxLen {
		ns.errs = ns.errs[len(ns.errs)-ns.errorStackMaxLen:]
	}
	ns.mu.Unlock()
}

// DrainResults empties the out-queue and error list and returns their
// previous contents, for the handler to wrap into its reply batch
// (spec.md §4.5 steps 4-5).
func (ns *NodeState) DrainResults() ([]entry.Entry, []entry.Error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := ns.out
	errs := ns.errs
	ns.out = nil
	ns.errs = nil
	return out, errs
}

// QueueLen reports the current command queue depth (diagnostics/tests).
func (ns *NodeState) QueueLen() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.queue)
}
