// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue implements DecodedQueue: a FIFO of completed decoded
// records awaiting drain by the wiring loop. A capture.FlowTable hands the
// same Queue to every Framer it creates, so one Queue collects the records
// of all tracked flow directions; Push and Drain are mutex-guarded, and Push
// never blocks a decoder on a slow consumer.
package queue

import (
	"sync"
	"sync/atomic"
)

// Queue is a push/drain FIFO. Push is non-blocking: a closed Queue silently
// discards pushes rather than panicking the decoder that owns it.
type Queue struct {
	mut    sync.Mutex
	buf    []any
	closed atomic.Bool
}

// New returns an empty, open Queue.
func New() *Queue {
	return &Queue{}
}

// Push appends data to the tail. A no-op once Close has been called.
func (q *Queue) Push(data any) {
	if q.closed.Load() {
		return
	}
	q.mut.Lock()
	q.buf = append(q.buf, data)
	q.mut.Unlock()
}

// Drain returns everything buffered since the last Drain, in push order,
// and empties the queue.
func (q *Queue) Drain() []any {
	q.mut.Lock()
	defer q.mut.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	out := q.buf
	q.buf = nil
	return out
}

// Len reports the number of records currently buffered.
func (q *Queue) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return len(q.buf)
}

// Close marks the queue closed; subsequent Pushes are discarded. Already
// buffered records remain drainable.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}
