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
	"sort"
	"strings"

	goset "github.com/deckarep/golang-set/v2"

	"github.com/minikv/minietcd/task"
)

// subscription is one registered observer of a key prefix.
type subscription struct {
	id     string
	prefix string
	fn     WatchFunc
	handle *task.Task
}

// watcherHub maps key prefixes to their active subscriptions. The caller
// (the store) guards it with its own lock.
type watcherHub struct {
	prefixes map[string][]*subscription
	// live holds the ids of all registered subscriptions. Cancellation uses
	// it to stay idempotent: a second cancellation for the same handle finds
	// the id gone and does nothing.
	live goset.Set[string]
}

func newWatcherHub() *watcherHub {
	return &watcherHub{
		prefixes: map[string][]*subscription{},
		live:     goset.NewSet[string](),
	}
}

// add registers the subscription under its prefix
func (h *watcherHub) add(sub *subscription) {
	h.prefixes[sub.prefix] = append(h.prefixes[sub.prefix], sub)
	h.live.Add(sub.id)
}

// matching returns every subscription whose prefix is a string-prefix of
// key. Prefixes are visited in ascending order and subscriptions within a
// prefix in registration order, so notification fan-out is deterministic.
func (h *watcherHub) matching(key string) []*subscription {
	prefixes := make([]string, 0, len(h.prefixes))
	for prefix := range h.prefixes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	var matched []*subscription
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, h.prefixes[prefix]...)
		}
	}
	return matched
}

// remove unregisters the subscription with the given id and returns it.
// It returns false when the id is not registered. Finding the same id
// registered more than once means the hub is corrupt; that is a bug in the
// store, not a runtime condition, and panics.
func (h *watcherHub) remove(id string) (*subscription, bool) {
	if !h.live.Contains(id) {
		return nil, false
	}

	var removed *subscription
	for prefix, subs := range h.prefixes {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			if removed != nil {
				panic("watcher hub holds duplicate subscription " + id)
			}
			removed = sub
			h.prefixes[prefix] = append(subs[:i:i], subs[i+1:]...)
			if len(h.prefixes[prefix]) == 0 {
				delete(h.prefixes, prefix)
			}
			break
		}
	}

	h.live.Remove(id)
	return removed, removed != nil
}
