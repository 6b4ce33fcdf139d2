/*
 * MIT License
 *
 * Copyright (c) 2025-2026 minietcd contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package task provides the cancellation handle bound to a watch
// subscription. The handle is a single-assignment container: it is cancelled
// at most once by its owner and resolved with a final status exactly once by
// the store.
package task

import (
	"context"
	"sync"

	"google.golang.org/grpc/status"
)

// Task represents a cancellable unit of interest whose final outcome may or
// may not currently be available. Cancelling the task runs the registered
// cancellation hooks; the party that tears the work down resolves the task
// with a final status which Await reports.
type Task struct {
	mu        sync.Mutex
	cancelled bool
	hooks     []func()

	completeOnce sync.Once
	done         chan struct{}
	status       *status.Status
}

// New creates a Task
func New() *Task {
	return &Task{
		done: make(chan struct{}),
	}
}

// Cancel cancels the task and runs the registered hooks in registration
// order. Cancelling an already cancelled task is a no-op.
func (x *Task) Cancel() {
	x.mu.Lock()
	if x.cancelled {
		x.mu.Unlock()
		return
	}
	x.cancelled = true
	hooks := x.hooks
	x.hooks = nil
	x.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// Cancelled reports whether the task has been cancelled.
func (x *Task) Cancelled() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.cancelled
}

// WhenCancelled registers a hook to run once the task is cancelled. When the
// task is already cancelled the hook runs immediately on the caller's stack.
func (x *Task) WhenCancelled(hook func()) {
	if hook == nil {
		return
	}
	x.mu.Lock()
	if !x.cancelled {
		x.hooks = append(x.hooks, hook)
		x.mu.Unlock()
		return
	}
	x.mu.Unlock()
	hook()
}

// Complete resolves the task with its final status. Only the first call
// wins; later calls are ignored.
func (x *Task) Complete(st *status.Status) {
	x.completeOnce.Do(func() {
		x.status = st
		close(x.done)
	})
}

// Await blocks until the task is resolved or the context is done. It returns
// the final status, or the context error when the context wins.
func (x *Task) Await(ctx context.Context) (*status.Status, error) {
	select {
	case <-x.done:
		return x.status, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the task is resolved.
func (x *Task) Done() <-chan struct{} {
	return x.done
}

// Status returns the final status, or nil while the task is unresolved.
func (x *Task) Status() *status.Status {
	select {
	case <-x.done:
		return x.status
	default:
		return nil
	}
}
