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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/minikv/minietcd/task"
)

func TestWatch(t *testing.T) {
	t.Run("With empty initial snapshot", func(t *testing.T) {
		e := newEnv(t)
		rec := new(recorder)
		e.store.Watch("/w/", rec.fn, task.New())
		e.flush(t)

		batches := rec.snapshot()
		require.Len(t, batches, 1)
		require.Empty(t, batches[0])
	})

	t.Run("With lifecycle of a single key", func(t *testing.T) {
		// scenario: empty snapshot, then exists=true on create,
		// then exists=false on delete
		e := newEnv(t)
		rec := new(recorder)
		e.store.Watch("/w/", rec.fn, task.New())
		e.flush(t)

		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "v"})
		e.do(t, VerbDelete, "/w/a", nil)

		batches := rec.snapshot()
		require.Len(t, batches, 3)
		require.Empty(t, batches[0])

		require.Len(t, batches[1], 1)
		require.True(t, batches[1][0].Exists)
		require.Equal(t, "/w/a", batches[1][0].Node.Key)
		require.Equal(t, "v", val(batches[1][0].Node))

		require.Len(t, batches[2], 1)
		require.False(t, batches[2][0].Exists)
		require.Equal(t, "/w/a", batches[2][0].Node.Key)
		require.Nil(t, batches[2][0].Node.Value)
	})

	t.Run("With snapshot of pre-existing entries", func(t *testing.T) {
		e := newEnv(t)
		e.do(t, VerbSet, "/w/b", map[string]string{ParamValue: "2"})
		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "1"})
		e.do(t, VerbSet, "/other", map[string]string{ParamValue: "x"})

		rec := new(recorder)
		e.store.Watch("/w/", rec.fn, task.New())
		e.flush(t)

		batches := rec.snapshot()
		require.Len(t, batches, 1)
		require.Len(t, batches[0], 2)
		// snapshot is delivered in key order
		require.Equal(t, "/w/a", batches[0][0].Node.Key)
		require.Equal(t, "/w/b", batches[0][1].Node.Key)
		require.True(t, batches[0][0].Exists)
		require.True(t, batches[0][1].Exists)
	})

	t.Run("With plain string-prefix matching", func(t *testing.T) {
		// the prefix is not path-segment aware: "/ab" matches "/abc"
		e := newEnv(t)
		rec := new(recorder)
		e.store.Watch("/ab", rec.fn, task.New())
		e.flush(t)

		e.do(t, VerbSet, "/abc", map[string]string{ParamValue: "v"})

		batches := rec.snapshot()
		require.Len(t, batches, 2)
		require.Equal(t, "/abc", batches[1][0].Node.Key)
	})

	t.Run("With fan-out to matching watchers only", func(t *testing.T) {
		e := newEnv(t)
		hit := new(recorder)
		alsoHit := new(recorder)
		miss := new(recorder)
		e.store.Watch("/w/", hit.fn, task.New())
		e.store.Watch("/", alsoHit.fn, task.New())
		e.store.Watch("/elsewhere/", miss.fn, task.New())
		e.flush(t)

		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "v"})

		require.Len(t, hit.snapshot(), 2)
		require.Len(t, alsoHit.snapshot(), 2)
		require.Len(t, miss.snapshot(), 1)
	})

	t.Run("With response delivered before the notification", func(t *testing.T) {
		e := newEnv(t)
		var mu sync.Mutex
		var order []string

		e.store.Watch("/w/", func([]Event) {
			mu.Lock()
			order = append(order, "event")
			mu.Unlock()
		}, task.New())
		e.flush(t)

		e.store.Set("/w/a", map[string]string{ParamValue: "v"}, func(Result) {
			mu.Lock()
			order = append(order, "response")
			mu.Unlock()
		})
		e.flush(t)

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []string{"response", "event"}, order[1:])
	})
}

func TestCancelWatch(t *testing.T) {
	t.Run("With no delivery after cancellation", func(t *testing.T) {
		e := newEnv(t)
		rec := new(recorder)
		handle := task.New()
		e.store.Watch("/w/", rec.fn, handle)
		e.flush(t)

		handle.Cancel()
		st, err := handle.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, codes.Canceled, st.Code())

		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "v"})
		require.Len(t, rec.snapshot(), 1)
	})

	t.Run("With sibling watcher unaffected", func(t *testing.T) {
		e := newEnv(t)
		cancelled := new(recorder)
		kept := new(recorder)
		handle := task.New()
		e.store.Watch("/w/", cancelled.fn, handle)
		e.store.Watch("/w/", kept.fn, task.New())
		e.flush(t)

		handle.Cancel()
		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "v"})

		require.Len(t, cancelled.snapshot(), 1)
		require.Len(t, kept.snapshot(), 2)
	})

	t.Run("With repeated cancellation", func(t *testing.T) {
		e := newEnv(t)
		handle := task.New()
		e.store.Watch("/w/", func([]Event) {}, handle)
		e.flush(t)

		handle.Cancel()
		assert.NotPanics(t, handle.Cancel)
	})

	t.Run("With handle cancelled before registration", func(t *testing.T) {
		e := newEnv(t)
		handle := task.New()
		handle.Cancel()

		rec := new(recorder)
		e.store.Watch("/w/", rec.fn, handle)
		st, err := handle.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, codes.Canceled, st.Code())

		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "v"})
		require.Empty(t, rec.snapshot())
	})

	t.Run("With nil callback or handle", func(t *testing.T) {
		e := newEnv(t)
		assert.Panics(t, func() {
			e.store.Watch("/w/", nil, task.New())
		})
		assert.Panics(t, func() {
			e.store.Watch("/w/", func([]Event) {}, nil)
		})
	})
}

func TestExpiry(t *testing.T) {
	t.Run("With expired key hidden from reads", func(t *testing.T) {
		e := newEnv(t)
		e.do(t, VerbSet, "/a", map[string]string{ParamValue: "v", ParamTTL: "10"})

		e.advance(11 * time.Second)
		result := e.do(t, VerbGet, "/a", nil)
		require.Equal(t, codes.NotFound, result.Status.Code())
	})

	t.Run("With key alive until the deadline passes", func(t *testing.T) {
		e := newEnv(t)
		e.do(t, VerbSet, "/a", map[string]string{ParamValue: "v", ParamTTL: "10"})

		e.advance(10 * time.Second)
		result := e.do(t, VerbGet, "/a", nil)
		require.Equal(t, codes.OK, result.Status.Code())
	})

	t.Run("With expiry notified on an unrelated request", func(t *testing.T) {
		e := newEnv(t)
		rec := new(recorder)
		e.store.Watch("/w/", rec.fn, task.New())
		e.flush(t)

		e.do(t, VerbSet, "/w/a", map[string]string{ParamValue: "v", ParamTTL: "5"})
		e.advance(6 * time.Second)

		// the sweep runs before the read is served, so the expiry event
		// lands ahead of anything the read itself could schedule
		e.do(t, VerbGet, "/unrelated", nil)

		batches := rec.snapshot()
		require.Len(t, batches, 3)
		require.Len(t, batches[2], 1)
		require.False(t, batches[2][0].Exists)
		require.Equal(t, "/w/a", batches[2][0].Node.Key)
	})

	t.Run("With expired entries swept in key order", func(t *testing.T) {
		e := newEnv(t)
		rec := new(recorder)
		e.store.Watch("/", rec.fn, task.New())
		e.flush(t)

		e.do(t, VerbSet, "/b", map[string]string{ParamValue: "2", ParamTTL: "5"})
		e.do(t, VerbSet, "/a", map[string]string{ParamValue: "1", ParamTTL: "5"})
		e.advance(6 * time.Second)
		e.do(t, VerbGet, "/unrelated", nil)

		batches := rec.snapshot()
		require.Len(t, batches, 5)
		require.Equal(t, "/a", batches[3][0].Node.Key)
		require.False(t, batches[3][0].Exists)
		require.Equal(t, "/b", batches[4][0].Node.Key)
		require.False(t, batches[4][0].Exists)
	})

	t.Run("With rewrite clearing the deadline", func(t *testing.T) {
		e := newEnv(t)
		e.do(t, VerbSet, "/a", map[string]string{ParamValue: "v", ParamTTL: "5"})
		e.do(t, VerbSet, "/a", map[string]string{ParamValue: "v2"})

		e.advance(time.Hour)
		result := e.do(t, VerbGet, "/a", nil)
		require.Equal(t, codes.OK, result.Status.Code())
		require.Equal(t, "v2", val(result.Response.Node))
	})
}
