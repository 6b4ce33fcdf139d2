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

import "google.golang.org/grpc/status"

// Actions reported in responses
const (
	ActionGet    = "get"
	ActionCreate = "create"
	ActionSet    = "set"
	ActionDelete = "delete"
)

// Recognized request parameters
const (
	// ParamValue is the payload for create/set operations.
	ParamValue = "value"
	// ParamTTL is the number of seconds until the entry expires.
	ParamTTL = "ttl"
	// ParamPrevExist conditions a set/delete on prior existence
	// ("true"/"false").
	ParamPrevExist = "prevExist"
	// ParamPrevIndex conditions a set/delete on the key's current
	// modifiedIndex (decimal).
	ParamPrevIndex = "prevIndex"
)

// Verb selects the operation performed by Do.
type Verb int

const (
	// VerbGet reads a leaf entry or lists a directory.
	VerbGet Verb = iota
	// VerbCreate creates a new entry under a directory with a synthesized key.
	VerbCreate
	// VerbSet conditionally writes a leaf entry.
	VerbSet
	// VerbDelete conditionally deletes a leaf entry.
	VerbDelete
)

func (v Verb) String() string {
	switch v {
	case VerbGet:
		return "GET"
	case VerbCreate:
		return "CREATE"
	case VerbSet:
		return "SET"
	case VerbDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Node is the document describing one stored node in a response.
//
// A leaf node carries key, createdIndex, modifiedIndex and, unless
// tombstoned, the value. A directory node carries dir=true, both indexes
// fixed at 1, and its children (key-ordered) under Nodes when non-empty.
type Node struct {
	Key           string  `json:"key,omitempty"`
	Dir           bool    `json:"dir,omitempty"`
	Value         *string `json:"value,omitempty"`
	CreatedIndex  int64   `json:"createdIndex"`
	ModifiedIndex int64   `json:"modifiedIndex"`
	Nodes         []*Node `json:"nodes,omitempty"`
}

// Response is the structured document delivered for a successful operation.
type Response struct {
	Action string `json:"action"`
	Node   *Node  `json:"node"`
}

// Result is the complete outcome of one operation: the status, the response
// document when the status is OK, and the post-operation value of the global
// version counter.
type Result struct {
	Status   *status.Status
	Response *Response
	Index    int64
}

// Callback receives the result of an operation. It always runs through the
// scheduler, never on the caller's stack.
type Callback func(Result)

// Event is one change notification delivered to a watcher. Exists is false
// when the node was deleted or expired.
type Event struct {
	Node   *Node
	Exists bool
}

// WatchFunc receives change notifications for a watch subscription. The
// first delivery is the snapshot of all live entries under the watched
// prefix; every later delivery carries exactly one event.
type WatchFunc func(events []Event)
