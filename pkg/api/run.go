package api

import (
	"context"
	"sync"

	"github.com/agentic-project/agentic/pkg/bridge"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// taskRun fans one task's progress updates out to any number of stream
// subscribers. Late subscribers replay the full history first.
type taskRun struct {
	cancel context.CancelFunc

	mu       sync.Mutex
	history  []bridge.ProgressUpdate
	subs     map[chan bridge.ProgressUpdate]struct{}
	done     bool
	terminal *workflow.WorkflowCompletedData
}

func newTaskRun(cancel context.CancelFunc) *taskRun {
	return &taskRun{
		cancel: cancel,
		subs:   make(map[chan bridge.ProgressUpdate]struct{}),
	}
}

// publish appends an update and delivers it to live subscribers. A
// subscriber that stopped draining is dropped rather than blocking the
// run.
func (r *taskRun) publish(u bridge.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.history = append(r.history, u)
	for sub := range r.subs {
		select {
		case sub <- u:
		default:
			delete(r.subs, sub)
			close(sub)
		}
	}
}

// finish records the terminal payload.
func (r *taskRun) finish(data workflow.WorkflowCompletedData) {
	r.mu.Lock()
	r.terminal = &data
	r.mu.Unlock()
}

// close marks the run finished and releases all subscribers.
func (r *taskRun) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	for sub := range r.subs {
		close(sub)
	}
	r.subs = nil
}

// subscribe returns a channel that first replays history, then follows
// live updates, closing when the run ends. For a finished run the
// channel holds the history and is already closed.
func (r *taskRun) subscribe() <-chan bridge.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan bridge.ProgressUpdate, len(r.history)+subscriberBuffer)
	for _, u := range r.history {
		ch <- u
	}
	if r.done {
		close(ch)
		return ch
	}
	r.subs[ch] = struct{}{}
	return ch
}

// unsubscribe detaches a live subscriber, e.g. when its client went
// away.
func (r *taskRun) unsubscribe(ch <-chan bridge.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		if sub == ch {
			delete(r.subs, sub)
			close(sub)
			return
		}
	}
}

// status returns the terminal payload, if the run finished.
func (r *taskRun) status() (*workflow.WorkflowCompletedData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminal, r.done
}

// subscriberBuffer is headroom past the history replay so a briefly
// stalled client is not dropped immediately.
const subscriberBuffer = 64
