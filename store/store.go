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

// Package store implements an in-process, in-memory substitute for an
// etcd-style hierarchical key-value coordination service: get, create,
// conditional set, conditional delete, prefix watches, and lazy TTL expiry,
// with the exact ordering and version-counter semantics of the real data
// plane. It exists so that code depending on such a service can be exercised
// deterministically without a networked cluster.
//
// A key ending in '/' denotes a directory and supports only listing and
// create-under; any other key denotes a leaf. Mixing the two shapes up is a
// caller bug and panics.
package store

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/minikv/minietcd/log"
	"github.com/minikv/minietcd/scheduler"
	"github.com/minikv/minietcd/task"
)

// Store is a single logical coordination node. All entries, subscriptions
// and the version counter live inside the instance; the scheduler is
// borrowed, not owned.
//
// One lock guards the entry table and the watcher hub. Handlers hold it for
// their entire critical section, including precondition checks and
// notification scheduling, but scheduling only enqueues: no callback ever
// runs while the lock is held, and callbacks run strictly in the order they
// were scheduled.
type Store struct {
	mu       sync.Mutex
	table    *table
	watchers *watcherHub

	runner scheduler.Scheduler
	logger log.Logger
	clock  func() time.Time
}

// New creates a Store delivering all callbacks through the given scheduler.
func New(runner scheduler.Scheduler, opts ...Option) *Store {
	if runner == nil {
		panic("store: scheduler is required")
	}
	s := &Store{
		table:    newTable(),
		watchers: newWatcherHub(),
		runner:   runner,
		logger:   log.DiscardLogger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt.Apply(s)
	}
	return s
}

// Index returns the current value of the global version counter.
func (s *Store) Index() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.index
}

// Do purges expired entries and then dispatches the operation. The callback
// is delivered asynchronously through the scheduler; Do returns after
// scheduling work, not after it runs. An unknown verb or an empty key is a
// caller bug and panics.
func (s *Store) Do(verb Verb, key string, params map[string]string, cb Callback) {
	if key == "" {
		s.logger.Panicf("%s with empty key", verb)
	}

	s.purgeExpired()

	switch verb {
	case VerbGet:
		s.handleGet(key, cb)
	case VerbCreate:
		s.handleCreate(key, params, cb)
	case VerbSet:
		s.handleSet(key, params, cb)
	case VerbDelete:
		s.handleDelete(key, params, cb)
	default:
		s.logger.Panicf("unsupported verb %d", verb)
	}

	s.dumpEntries()
}

// Get reads the leaf entry at key, or lists the directory when key ends in
// a path separator.
func (s *Store) Get(key string, cb Callback) {
	s.Do(VerbGet, key, nil, cb)
}

// Create writes the value under the directory dir at a synthesized key and
// reports it with a "create" action.
func (s *Store) Create(dir string, params map[string]string, cb Callback) {
	s.Do(VerbCreate, dir, params, cb)
}

// Set conditionally writes the leaf entry at key.
func (s *Store) Set(key string, params map[string]string, cb Callback) {
	s.Do(VerbSet, key, params, cb)
}

// Delete conditionally deletes the leaf entry at key.
func (s *Store) Delete(key string, params map[string]string, cb Callback) {
	s.Do(VerbDelete, key, params, cb)
}

// Watch subscribes fn to every change of keys starting with prefix. The
// subscriber first receives one snapshot of all currently live entries under
// the prefix, even when empty, and afterwards one single-event delivery per
// mutation. Cancelling the handle removes the subscription and resolves the
// handle with a Canceled status; a handle that is already cancelled
// registers nothing and resolves immediately.
func (s *Store) Watch(prefix string, fn WatchFunc, handle *task.Task) {
	if fn == nil {
		s.logger.Panicf("watch on %s without callback", prefix)
	}
	if handle == nil {
		s.logger.Panicf("watch on %s without cancellation handle", prefix)
	}
	if handle.Cancelled() {
		handle.Complete(status.New(codes.Canceled, "watch cancelled"))
		return
	}

	s.mu.Lock()
	var snapshot []Event
	for _, e := range s.table.list(prefix) {
		snapshot = append(snapshot, Event{Node: e.node(), Exists: true})
	}
	s.runner.Schedule(func() {
		fn(snapshot)
	})

	sub := &subscription{
		id:     uuid.NewString(),
		prefix: prefix,
		fn:     fn,
		handle: handle,
	}
	s.watchers.add(sub)
	s.mu.Unlock()

	s.logger.Debugf("WATCH %s subscription=%s", prefix, sub.id)
	handle.WhenCancelled(func() {
		s.cancelWatch(sub.id)
	})
}

// cancelWatch removes the subscription with the given id, if still
// registered, and resolves its handle. At most one subscription ever matches
// one id; the hub panics otherwise.
func (s *Store) cancelWatch(id string) {
	s.mu.Lock()
	sub, ok := s.watchers.remove(id)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.logger.Debugf("removing watcher %s on %s", sub.id, sub.prefix)
	sub.handle.Complete(status.New(codes.Canceled, "watch cancelled"))
}

// purgeExpired lazily removes every entry whose TTL has elapsed: tombstone,
// notify watchers, erase, in key order. It runs before each request, so the
// request never observes an expired entry; there is no background timer.
func (s *Store) purgeExpired() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.table.sortedKeys() {
		e := s.table.entries[key]
		if !e.expired(now) {
			continue
		}
		s.logger.Debugf("deleting expired entry %s", key)
		e.deleted = true
		s.notify(key)
		s.table.erase(key)
	}
}

// notify schedules one single-event delivery to every subscription whose
// prefix matches key. The entry must still be in the table, tombstoned or
// not. Callers hold the lock; the notifications are scheduled after the
// operation's own response, so the mutating caller observes its result no
// later than any watcher does.
func (s *Store) notify(key string) {
	e, ok := s.table.get(key)
	if !ok {
		s.logger.Panicf("no entry to notify at %s", key)
	}

	event := Event{Node: e.node(), Exists: !e.deleted}
	for _, sub := range s.watchers.matching(key) {
		fn := sub.fn
		s.runner.Schedule(func() {
			fn([]Event{event})
		})
	}
}

// handleGet serves a read: a directory listing for a directory-shaped key,
// the single entry otherwise.
func (s *Store) handleGet(key string, cb Callback) {
	s.logger.Debugf("GET %s", key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasSuffix(key, "/") {
		node := &Node{
			Dir:           true,
			CreatedIndex:  1,
			ModifiedIndex: 1,
		}
		for _, e := range s.table.list(key) {
			node.Nodes = append(node.Nodes, e.node())
		}
		s.respond(cb, status.New(codes.OK, ""), &Response{Action: ActionGet, Node: node})
		return
	}

	e, ok := s.table.get(key)
	if !ok {
		s.respond(cb, status.New(codes.NotFound, "not found"), nil)
		return
	}
	s.respond(cb, status.New(codes.OK, ""), &Response{Action: ActionGet, Node: e.node()})
}

// handleCreate writes the value at a key synthesized by appending the
// current version counter under the directory. A missing value parameter is
// a caller bug.
func (s *Store) handleCreate(key string, params map[string]string, cb Callback) {
	s.logger.Debugf("CREATE %s", key)
	value := s.requireValue(VerbCreate, key, params)
	expiresAt := s.expiryFromParams(params)

	s.mu.Lock()
	defer s.mu.Unlock()

	path := ensureTrailingSlash(key) + strconv.FormatInt(s.table.index, 10)
	e := s.table.put(path, value, expiresAt)
	s.respond(cb, status.New(codes.OK, ""), &Response{Action: ActionCreate, Node: e.node()})
	s.notify(path)
}

// handleSet conditionally writes the leaf entry at key. On a precondition
// failure nothing changes, the version counter included.
func (s *Store) handleSet(key string, params map[string]string, cb Callback) {
	s.logger.Debugf("SET %s", key)
	if strings.HasSuffix(key, "/") {
		s.logger.Panicf("SET on directory %s", key)
	}
	value := s.requireValue(VerbSet, key, params)
	expiresAt := s.expiryFromParams(params)

	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.table.checkPreconditions(key, params); st != nil {
		s.respond(cb, st, nil)
		return
	}

	e := s.table.put(key, value, expiresAt)
	s.respond(cb, status.New(codes.OK, ""), &Response{Action: ActionSet, Node: e.node()})
	s.notify(key)
}

// handleDelete conditionally deletes the leaf entry at key. The response is
// built from the tombstoned entry before it is erased, so it reports the
// modifiedIndex of the last write, not of the delete.
func (s *Store) handleDelete(key string, params map[string]string, cb Callback) {
	s.logger.Debugf("DELETE %s", key)
	if strings.HasSuffix(key, "/") {
		s.logger.Panicf("DELETE on directory %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.table.checkPreconditions(key, params); st != nil {
		s.respond(cb, st, nil)
		return
	}

	e, ok := s.table.get(key)
	if !ok {
		// no precondition was supplied and the key is absent
		s.respond(cb, status.New(codes.NotFound, "not found"), nil)
		return
	}

	e.deleted = true
	s.table.bump()
	s.respond(cb, status.New(codes.OK, ""), &Response{Action: ActionDelete, Node: e.node()})
	s.notify(key)
	s.table.erase(key)
}

// respond schedules the operation's own callback. The reported index is the
// post-operation counter value: one greater than the stamp carried by an
// entry the operation just wrote.
func (s *Store) respond(cb Callback, st *status.Status, resp *Response) {
	result := Result{
		Status:   st,
		Response: resp,
		Index:    s.table.index,
	}
	s.runner.Schedule(func() {
		cb(result)
	})
}

// requireValue returns the value parameter, panicking when it is missing.
func (s *Store) requireValue(verb Verb, key string, params map[string]string) string {
	value, ok := params[ParamValue]
	if !ok {
		s.logger.Panicf("%s %s without value parameter", verb, key)
	}
	return value
}

// expiryFromParams computes the absolute expiry for the ttl parameter, or
// the zero time when none was supplied. A malformed ttl is a caller bug.
func (s *Store) expiryFromParams(params map[string]string) time.Time {
	ttl, ok := params[ParamTTL]
	if !ok {
		return time.Time{}
	}
	seconds, err := strconv.Atoi(ttl)
	if err != nil {
		s.logger.Panicf("malformed ttl parameter %q: %v", ttl, err)
	}
	return s.clock().Add(time.Duration(seconds) * time.Second)
}

// dumpEntries logs the table contents after a request when debug logging is
// enabled.
func (s *Store) dumpEntries() {
	if !s.logger.Enabled(log.DebugLevel) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.table.sortedKeys() {
		e := s.table.entries[key]
		s.logger.Debugf("entry key=%s value=%s created=%d modified=%d deleted=%t",
			e.key, e.value, e.createdIndex, e.modifiedIndex, e.deleted)
	}
}

// ensureTrailingSlash appends a path separator unless one is present.
func ensureTrailingSlash(s string) string {
	if s == "" || !strings.HasSuffix(s, "/") {
		return s + "/"
	}
	return s
}
