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

package scheduler

import "github.com/minikv/minietcd/log"

// defaultCapacity is the default ring buffer capacity
const defaultCapacity = 1 << 10

// Option is the interface that applies a configuration option to a Serial
// scheduler.
type Option interface {
	Apply(*Serial)
}

// enforce compilation error
var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Serial)

func (f OptionFunc) Apply(s *Serial) {
	f(s)
}

// WithCapacity sets a custom ring buffer capacity
func WithCapacity(capacity uint64) Option {
	return OptionFunc(func(s *Serial) {
		if capacity > 0 {
			s.capacity = capacity
		}
	})
}

// WithLogger sets a custom logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(s *Serial) {
		s.logger = logger
	})
}
