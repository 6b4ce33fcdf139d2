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
	"fmt"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// checkPreconditions evaluates the prevExist/prevIndex parameters against
// the current table state. It returns nil when the write may proceed and a
// FailedPrecondition status naming the failed condition otherwise. The
// caller holds the store lock, so no other mutation can interleave between
// the check and the write.
func (t *table) checkPreconditions(key string, params map[string]string) *status.Status {
	e, exists := t.get(key)

	if prevExist, ok := params[ParamPrevExist]; ok {
		if exists && prevExist == "false" {
			return status.New(codes.FailedPrecondition, key+" Already exists")
		}
		if !exists && prevExist == "true" {
			return status.New(codes.FailedPrecondition, key+" Not found")
		}
	}

	if prevIndex, ok := params[ParamPrevIndex]; ok {
		if !exists {
			return status.New(codes.FailedPrecondition, "Node doesn't exist: "+key)
		}
		if prevIndex != strconv.FormatInt(e.modifiedIndex, 10) {
			return status.New(codes.FailedPrecondition,
				fmt.Sprintf("Incorrect index: prevIndex=%s but modifiedIndex=%d", prevIndex, e.modifiedIndex))
		}
	}

	return nil
}
