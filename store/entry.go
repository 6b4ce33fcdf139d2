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
	"time"
)

// entry is one stored node. An entry is either live or, transiently during
// the delete/expiry sequence, tombstoned (deleted=true, still in the table)
// before being erased.
type entry struct {
	key           string
	value         string
	createdIndex  int64
	modifiedIndex int64
	deleted       bool
	// expiresAt is the absolute expiry time; the zero value means the entry
	// never expires.
	expiresAt time.Time
}

// expired reports whether the entry's time-to-live has elapsed at now.
func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(now)
}

// node builds the response document for the entry. A tombstoned entry
// carries no value, so watchers and delete responses can report deletion
// metadata without the payload.
func (e *entry) node() *Node {
	node := &Node{
		Key:           e.key,
		CreatedIndex:  e.createdIndex,
		ModifiedIndex: e.modifiedIndex,
	}
	if !e.deleted {
		value := e.value
		node.Value = &value
	}
	return node
}

// table is the authoritative mapping from key path to entry. It owns the
// global version counter: index holds the value stamped onto the next write,
// so after any completed write it is one greater than the stamp that write
// received. That post-increment value is what responses report.
type table struct {
	index   int64
	entries map[string]*entry
}

func newTable() *table {
	return &table{
		index:   1,
		entries: map[string]*entry{},
	}
}

// get returns the entry at key
func (t *table) get(key string) (*entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// sortedKeys returns all keys in ascending order
func (t *table) sortedKeys() []string {
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// list returns, in key order, every entry whose key starts with prefix.
// Matching is plain string-prefix, not path-segment aware.
func (t *table) list(prefix string) []*entry {
	var matched []*entry
	for _, key := range t.sortedKeys() {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, t.entries[key])
		}
	}
	return matched
}

// put writes value at key and advances the version counter once. A new key
// gets createdIndex = modifiedIndex = the pre-increment counter value; an
// existing key keeps its createdIndex and only modifiedIndex moves.
func (t *table) put(key, value string, expiresAt time.Time) *entry {
	stamp := t.index
	t.index++

	if existing, ok := t.entries[key]; ok {
		existing.value = value
		existing.modifiedIndex = stamp
		existing.expiresAt = expiresAt
		existing.deleted = false
		return existing
	}

	e := &entry{
		key:           key,
		value:         value,
		createdIndex:  stamp,
		modifiedIndex: stamp,
		expiresAt:     expiresAt,
	}
	t.entries[key] = e
	return e
}

// bump advances the version counter without stamping any entry. Deletes
// consume a version this way: the operation is ordered, but the tombstoned
// entry still reports the modifiedIndex of its last write.
func (t *table) bump() {
	t.index++
}

// erase removes the entry at key from the table
func (t *table) erase(key string) {
	delete(t.entries, key)
}
