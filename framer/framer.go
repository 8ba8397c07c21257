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

// Package framer turns a stream of TCP payload segments into whole Target
// Protocol messages, reassembling bodies that span multiple segments and
// dispatching complete bodies to the deserializer.
package framer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/marienilba/dofuscap/bytecursor"
	"github.com/marienilba/dofuscap/deserialize"
	"github.com/marienilba/dofuscap/logger"
	"github.com/marienilba/dofuscap/queue"
	"github.com/marienilba/dofuscap/schema"
)

// ServerPort is the Target Protocol's well-known TCP port; frames whose
// source port equals it omit the client-only instance-id field and are
// attributed to the "Server" side.
const ServerPort = 5555

// Record is one fully decoded Target Protocol message.
type Record struct {
	Source string              `json:"source"` // "Server" or "Client"
	Time   time.Time           `json:"time"`
	ID     uint16              `json:"id"`
	Name   string              `json:"name"`
	Raw    []byte              `json:"raw"`
	Body   *deserialize.Fields `json:"body"`
}

// Source derives a Record's direction label from the segment's TCP source port.
func Source(srcPort uint16) string {
	if srcPort == ServerPort {
		return "Server"
	}
	return "Client"
}

// Framer is a per-flow (one TCP connection, one direction) state machine.
// It is not safe for concurrent use; callers own exactly one Framer per
// flow direction.
type Framer struct {
	cat   *schema.Catalog
	queue *queue.Queue

	split         bool
	pending       *bytecursor.Cursor
	pendingID     uint16
	pendingLength int
	pendingPort   uint16
}

// New returns an Idle Framer bound to a schema catalog and the queue its
// decoded records are pushed to.
func New(cat *schema.Catalog, q *queue.Queue) *Framer {
	return &Framer{cat: cat, queue: q, pending: bytecursor.New(nil)}
}

// Feed processes one TCP payload segment from the direction whose source
// port is srcPort, enqueuing zero or more completed Records.
func (fr *Framer) Feed(segment []byte, srcPort uint16, now time.Time) {
	cur := bytecursor.New(segment)
	for cur.BytesAvailable() > 0 {
		if fr.split {
			if !fr.continueReassembly(cur, now) {
				return
			}
			continue
		}
		if !fr.readHeader(cur, srcPort, now) {
			return
		}
	}
}

// continueReassembly handles the Reassembling state: transfer bytes from
// the current segment into pending until pendingLength is satisfied.
func (fr *Framer) continueReassembly(cur *bytecursor.Cursor, now time.Time) bool {
	need := fr.pendingLength - fr.pending.Len()
	if need > cur.BytesAvailable() {
		_ = cur.Drain(fr.pending, 0)
		return false
	}

	if err := cur.Drain(fr.pending, need); err != nil {
		// segment had fewer bytes than BytesAvailable reported; should not
		// happen, but resynchronize defensively.
		logger.Errorf("framer: drain for reassembly failed: %v", err)
		fr.resetSplit()
		return false
	}

	fr.pending.SeekTo(0)
	fr.finishMessage(fr.pending, fr.pendingID, fr.pendingLength, fr.pendingPort, now)
	fr.resetSplit()
	return true
}

func (fr *Framer) resetSplit() {
	fr.split = false
	fr.pending = bytecursor.New(nil)
	fr.pendingID = 0
	fr.pendingLength = 0
	fr.pendingPort = 0
}

// readHeader handles the Idle state: parse a header, then either emit the
// body in place or transition to Reassembling.
func (fr *Framer) readHeader(cur *bytecursor.Cursor, srcPort uint16, now time.Time) bool {
	if cur.BytesAvailable() < 2 {
		return false
	}

	hiHeader, err := cur.ReadU16()
	if err != nil {
		return false
	}
	messageID := hiHeader >> 2
	lengthType := hiHeader & 0b11

	if srcPort != ServerPort {
		if _, err := cur.ReadU32(); err != nil {
			logger.Warnf("framer: underflow reading client instance id")
			return false
		}
	}

	if _, ok := fr.cat.MessageByID(messageID); !ok {
		logger.Warnf("framer: unknown message id %d, dropping segment remainder", messageID)
		return false
	}

	length, ok := readLength(cur, lengthType)
	if !ok {
		logger.Warnf("framer: underflow reading length for message id %d", messageID)
		return false
	}

	if length > cur.BytesAvailable() {
		fr.split = true
		fr.pendingID = messageID
		fr.pendingLength = length
		fr.pendingPort = srcPort
		fr.pending = bytecursor.New(nil)
		_ = cur.Drain(fr.pending, 0)
		return false
	}

	if messageID == 0 {
		// keepalive / no-op: discard the rest of the segment outright instead
		// of trim-advancing past just this header, ending processing of this
		// Feed call.
		cur.SeekTo(cur.Len())
		return false
	}

	body, err := cur.ReadBytes(length)
	if err != nil {
		return false
	}
	bodyCur := bytecursor.New(body)
	fr.finishMessage(bodyCur, messageID, length, srcPort, now)
	return true
}

// finishMessage deserializes a complete body and enqueues the resulting
// Record, logging a trim warning if the deserializer consumed a different
// number of bytes than declared. body holds exactly the declared length, so
// the caller's segment cursor is already at the declared end.
func (fr *Framer) finishMessage(body *bytecursor.Cursor, id uint16, length int, srcPort uint16, now time.Time) {
	spec, ok := fr.cat.MessageByID(id)
	if !ok {
		logger.Warnf("framer: message id %d vanished from catalog between header and body", id)
		return
	}

	var fields *deserialize.Fields
	var consumed int
	if length > 0 {
		var err error
		fields, err = deserialize.Deserialize(body, spec.Name, fr.cat)
		consumed = body.Pos()
		if err != nil {
			logger.Warnf("framer: deserialize message id %d (%s) failed: %v", id, spec.Name, err)
			fields = deserialize.NewFields()
		} else if consumed != length {
			logger.Warnf("framer: forced to trim message id %d (%s): consumed %d, declared %d", id, spec.Name, consumed, length)
		}
	} else {
		fields = deserialize.NewFields()
	}

	fr.queue.Push(Record{
		Source: Source(srcPort),
		Time:   now,
		ID:     id,
		Name:   spec.Name,
		Raw:    body.Raw(),
		Body:   fields,
	})
}

// readLength decodes the body length field according to the Header's
// length_type: 0=empty, 1=u8, 2=u16, 3=3-byte big-endian unsigned.
func readLength(cur *bytecursor.Cursor, lengthType uint16) (int, bool) {
	switch lengthType {
	case 0:
		return 0, true
	case 1:
		v, err := cur.ReadU8()
		if err != nil {
			return 0, false
		}
		return int(v), true
	case 2:
		v, err := cur.ReadU16()
		if err != nil {
			return 0, false
		}
		return int(v), true
	case 3:
		b, err := cur.ReadBytes(3)
		if err != nil {
			return 0, false
		}
		return int(b[0]&0xFF)<<16 | int(b[1]&0xFF)<<8 | int(b[2]&0xFF), true
	default:
		return 0, false
	}
}

// ErrCaptureClosed is a sentinel for a capture driver that reported
// closure. No function in this package returns it.
var ErrCaptureClosed = errors.New("framer: capture closed")
