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

// Package scheduler provides the deferred-execution capability used by the
// store: callbacks are enqueued during a critical section and run later, off
// the caller's stack, strictly in enqueue order.
package scheduler

import (
	"context"
	"errors"

	gods "github.com/Workiva/go-datastructures/queue"
	"go.uber.org/atomic"

	"github.com/minikv/minietcd/log"
)

// ErrStopped is returned when scheduling work on a stopped scheduler.
var ErrStopped = errors.New("scheduler is stopped")

// Job is a zero-argument unit of work
type Job func()

// Scheduler accepts units of work and runs them asynchronously, later,
// off the caller's stack.
type Scheduler interface {
	// Schedule enqueues the given job for execution. It never runs the job
	// on the caller's stack.
	Schedule(job Job)
}

// Serial is a Scheduler backed by a ring buffer and a single consumer
// goroutine.
//
// Characteristics
//   - FIFO ordering: jobs run strictly in the order they were scheduled.
//   - Single consumer: jobs never run concurrently with one another.
//   - Bounded capacity: Schedule blocks when the buffer is full until space
//     becomes available or the scheduler is stopped.
//
// A panicking job is contained and logged so that one misbehaving callback
// cannot stop delivery of the ones scheduled after it.
type Serial struct {
	buffer   *gods.RingBuffer
	logger   log.Logger
	capacity uint64
	running  *atomic.Bool
	done     chan struct{}
}

// enforce compilation error
var _ Scheduler = (*Serial)(nil)

// NewSerial creates a Serial scheduler and starts its consumer goroutine.
// Call Stop to release it.
func NewSerial(opts ...Option) *Serial {
	serial := &Serial{
		logger:   log.DiscardLogger,
		capacity: defaultCapacity,
		running:  atomic.NewBool(true),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt.Apply(serial)
	}

	serial.buffer = gods.NewRingBuffer(serial.capacity)
	go serial.run()
	return serial
}

// Schedule enqueues the given job. Jobs scheduled after Stop are dropped
// with a warning.
func (x *Serial) Schedule(job Job) {
	if job == nil {
		return
	}
	if err := x.buffer.Put(job); err != nil {
		x.logger.Warnf("dropping job: %v", err)
	}
}

// Flush blocks until every job scheduled before the call has run, or until
// the context is done. It gives callers a deterministic barrier between
// "state mutated" and "observers notified".
func (x *Serial) Flush(ctx context.Context) error {
	if !x.running.Load() {
		return ErrStopped
	}

	flushed := make(chan struct{})
	x.Schedule(func() {
		close(flushed)
	})

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop disposes the buffer and waits for the consumer goroutine to exit.
// Jobs still queued at that point are discarded. Stop is idempotent.
func (x *Serial) Stop() {
	if !x.running.CompareAndSwap(true, false) {
		return
	}
	x.buffer.Dispose()
	<-x.done
}

// Len returns the number of jobs waiting to run.
func (x *Serial) Len() int64 {
	return int64(x.buffer.Len())
}

// run is the single consumer loop
func (x *Serial) run() {
	defer close(x.done)
	for {
		item, err := x.buffer.Get()
		if err != nil {
			// buffer disposed
			return
		}
		job, ok := item.(Job)
		if !ok {
			continue
		}
		x.invoke(job)
	}
}

// invoke runs one job, containing panics
func (x *Serial) invoke(job Job) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Errorf("job panicked: %v", r)
		}
	}()
	job()
}
