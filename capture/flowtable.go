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

// Package capture is the Wiring layer: it takes TCP segments whose headers
// the sniffer has already stripped, and keeps one Framer per flow direction
// alive for as long as that direction keeps producing traffic.
package capture

import (
	"sync"
	"time"

	"github.com/marienilba/dofuscap/common/socket"
	"github.com/marienilba/dofuscap/framer"
	"github.com/marienilba/dofuscap/logger"
	"github.com/marienilba/dofuscap/queue"
	"github.com/marienilba/dofuscap/schema"
)

// DefaultFlowExpired is how long a direction may sit idle before its Framer
// (and any in-flight reassembly state it holds) is dropped.
const DefaultFlowExpired = 5 * time.Minute

// FlowTable owns one Framer per (flow, direction) — keyed by socket.Tuple,
// which already encodes direction (src/dst are not interchangeable). A
// single TCP connection between a client and the Target Protocol server
// occupies two entries, one per direction, each independently reassembling.
type FlowTable struct {
	mut sync.Mutex

	cat   *schema.Catalog
	queue *queue.Queue
	ttl   *socket.TTLCache

	flows map[socket.Tuple]*framer.Framer
}

// NewFlowTable returns a FlowTable that decodes against cat and enqueues
// completed records onto q. Directions idle longer than expired are evicted
// by RemoveExpired.
func NewFlowTable(cat *schema.Catalog, q *queue.Queue, expired time.Duration) *FlowTable {
	if expired <= 0 {
		expired = DefaultFlowExpired
	}
	return &FlowTable{
		cat:   cat,
		queue: q,
		ttl:   socket.NewTTLCache(expired),
		flows: make(map[socket.Tuple]*framer.Framer),
	}
}

// Feed routes one TCP segment to the Framer owning its direction, creating
// that Framer on first sight.
func (ft *FlowTable) Feed(seg *socket.TCPSegment) {
	if len(seg.Payload) == 0 {
		return
	}
	logger.Debugf("feed %s", seg)

	ft.ttl.Set(seg.Tuple)

	ft.mut.Lock()
	fr, ok := ft.flows[seg.Tuple]
	if !ok {
		fr = framer.New(ft.cat, ft.queue)
		ft.flows[seg.Tuple] = fr
	}
	ft.mut.Unlock()

	fr.Feed(seg.Payload, uint16(seg.Tuple.SrcPort), seg.Time)
}

// RemoveExpired drops Framers for directions the TTL cache no longer
// considers live.
func (ft *FlowTable) RemoveExpired() {
	ft.mut.Lock()
	defer ft.mut.Unlock()

	for tuple := range ft.flows {
		if !ft.ttl.Has(tuple) {
			delete(ft.flows, tuple)
		}
	}
}

// Count returns the number of tracked flow directions.
func (ft *FlowTable) Count() int {
	ft.mut.Lock()
	defer ft.mut.Unlock()

	return len(ft.flows)
}

// Close releases the TTL cache's background goroutine.
func (ft *FlowTable) Close() {
	ft.ttl.Close()
}
