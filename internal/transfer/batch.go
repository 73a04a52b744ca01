package transfer

import (
	"sync"
	"time"
)

// Outcome is the terminal state of a batch.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeSucceeded
	OutcomeAborted
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeAborted:
		return "aborted"
	case OutcomeEmpty:
		return "empty"
	default:
		return "running"
	}
}

// batch holds the shared state of one upload run: the pending queue, the
// completion counters, and the abort flag. The mutex covers every field
// below it; the queue itself is safe to receive from without it.
type batch struct {
	queue chan *Task

	mu        sync.Mutex
	outcome   Outcome
	remaining int // tasks not yet terminal, including tasks waiting out a retry delay
	completed int
	bytes     int64
	firstErr  error
	timers    map[*Task]*time.Timer
}

// newBatch queues every task up front. Capacity covers the whole batch so
// a delayed re-enqueue can never block, even with all workers busy.
func newBatch(tasks []*Task) *batch {
	b := &batch{
		queue:     make(chan *Task, len(tasks)),
		outcome:   OutcomeRunning,
		remaining: len(tasks),
		timers:    make(map[*Task]*time.Timer),
	}
	for _, t := range tasks {
		b.queue <- t
	}
	return b
}

// taskDone records a terminal task. Once nothing remains pending the queue
// closes and the workers drain out.
func (b *batch) taskDone(t *Task, succeeded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if succeeded {
		b.completed++
		b.bytes += t.Size
	}
	b.finishLocked()
}

func (b *batch) finishLocked() {
	b.remaining--
	if b.remaining == 0 {
		close(b.queue)
	}
}

// scheduleRetry returns the task to the shared queue after the delay. The
// task keeps its pending slot while it waits, so the queue cannot close
// under it. A task whose batch aborted in the meantime is counted terminal
// instead of being dispatched again.
func (b *batch) scheduleRetry(t *Task, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outcome != OutcomeRunning {
		b.finishLocked()
		return
	}
	b.timers[t] = time.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.timers, t)
		if b.outcome != OutcomeRunning {
			b.finishLocked()
			return
		}
		b.queue <- t
	})
}

// abort records the first fatal error and closes the batch to new work.
// In-flight attempts finish naturally, queued tasks are drained without
// being dispatched, and pending retry timers are cancelled.
func (b *batch) abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outcome != OutcomeRunning {
		return
	}
	b.outcome = OutcomeAborted
	b.firstErr = err
	for t, tm := range b.timers {
		if tm.Stop() {
			delete(b.timers, t)
			b.finishLocked()
		}
		// A timer that already fired settles its own task when its
		// callback observes the aborted state.
	}
}

func (b *batch) isAborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outcome == OutcomeAborted
}

// result resolves the final outcome once the pool has stopped.
func (b *batch) result() (Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outcome == OutcomeRunning {
		b.outcome = OutcomeSucceeded
	}
	return b.outcome, b.firstErr
}

func (b *batch) stats() (completed int, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed, b.bytes
}

// completionSignal guards the batch completion callback so it fires exactly
// once no matter how many paths reach a terminal condition.
type completionSignal struct {
	mu       sync.Mutex
	signaled bool
	fn       func(error)
}

func newCompletionSignal(fn func(error)) *completionSignal {
	return &completionSignal{fn: fn}
}

func (c *completionSignal) fire(err error) {
	c.mu.Lock()
	if c.signaled {
		c.mu.Unlock()
		return
	}
	c.signaled = true
	c.mu.Unlock()

	if c.fn != nil {
		c.fn(err)
	}
}
