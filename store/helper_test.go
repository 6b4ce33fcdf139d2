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

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/minikv/minietcd/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// env wires a store to a serial scheduler and a controllable clock.
type env struct {
	serial *scheduler.Serial
	store  *Store

	mu  sync.Mutex
	now time.Time
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		serial: scheduler.NewSerial(),
		now:    time.Unix(1700000000, 0),
	}
	t.Cleanup(e.serial.Stop)
	opts = append([]Option{WithClock(e.clock)}, opts...)
	e.store = New(e.serial, opts...)
	return e
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// advance moves the test clock forward
func (e *env) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

// flush waits for every scheduled callback to have run
func (e *env) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.serial.Flush(ctx))
}

// do runs one operation synchronously and returns its result
func (e *env) do(t *testing.T, verb Verb, key string, params map[string]string) Result {
	t.Helper()
	var result Result
	e.store.Do(verb, key, params, func(r Result) {
		result = r
	})
	e.flush(t)
	return result
}

// recorder accumulates watch deliveries
type recorder struct {
	mu      sync.Mutex
	batches [][]Event
}

func (r *recorder) fn(events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
}

func (r *recorder) snapshot() [][]Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]Event, len(r.batches))
	copy(out, r.batches)
	return out
}

// val dereferences a node value, returning the empty string for tombstones
func val(n *Node) string {
	if n == nil || n.Value == nil {
		return ""
	}
	return *n.Value
}
