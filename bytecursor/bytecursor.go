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

// Package bytecursor provides a random-access read cursor over a growable
// byte buffer with typed big-endian readers and the Target Protocol's
// variable-length integer encodings.
package bytecursor

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/marienilba/dofuscap/logger"
)

// ErrEndOfBuffer is returned whenever a read would consume more bytes than
// remain between rpos and the end of buf.
var ErrEndOfBuffer = errors.New("bytecursor: end of buffer")

// Cursor owns a contiguous byte sequence and a read position. rpos never
// exceeds len(buf).
type Cursor struct {
	buf  []byte
	rpos int
}

// New wraps b as a Cursor. The Cursor takes ownership of b; callers must not
// mutate b afterwards.
func New(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// BytesAvailable returns the number of unread bytes.
func (c *Cursor) BytesAvailable() int {
	return len(c.buf) - c.rpos
}

// Pos returns the current read position.
func (c *Cursor) Pos() int {
	return c.rpos
}

// SeekTo repositions rpos, clamped to [0, len(buf)].
func (c *Cursor) SeekTo(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(c.buf) {
		pos = len(c.buf)
	}
	c.rpos = pos
}

// Len returns the total buffer length, read or not.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Raw returns the full underlying buffer regardless of read position.
// Callers must not mutate the returned slice.
func (c *Cursor) Raw() []byte {
	return c.buf
}

func (c *Cursor) require(n int) error {
	if c.BytesAvailable() < n {
		return errors.Wrapf(ErrEndOfBuffer, "need %d bytes, have %d", n, c.BytesAvailable())
	}
	return nil
}

// ReadU8 reads one unsigned byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.buf[c.rpos]
	c.rpos++
	return v, nil
}

// ReadI8 reads one signed byte.
func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

// ReadU16 reads a big-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.rpos:])
	c.rpos += 2
	return v, nil
}

// ReadI16 reads a big-endian int16.
func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

// ReadU32 reads a big-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.rpos:])
	c.rpos += 4
	return v, nil
}

// ReadI32 reads a big-endian int32.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadF32 reads a big-endian IEEE-754 single.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads a big-endian IEEE-754 double.
func (c *Cursor) ReadF64() (float64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.rpos:])
	c.rpos += 8
	return math.Float64frombits(v), nil
}

// ReadUTF reads a u16 length prefix followed by that many UTF-8 bytes.
func (c *Cursor) ReadUTF() (string, error) {
	n, err := c.ReadU16()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes consumes and returns n raw bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("bytecursor: negative length %d", n)
	}
	if err := c.require(n); err != nil {
		return nil, err
	}
	b := c.buf[c.rpos : c.rpos+n]
	c.rpos += n
	return b, nil
}

// Drain reads n bytes from c and appends them to dst. n == 0 means "transfer
// everything remaining". Reports ErrEndOfBuffer and transfers nothing if n
// exceeds BytesAvailable.
func (c *Cursor) Drain(dst *Cursor, n int) error {
	if n == 0 {
		n = c.BytesAvailable()
	}
	if err := c.require(n); err != nil {
		return err
	}
	dst.buf = append(dst.buf, c.buf[c.rpos:c.rpos+n]...)
	c.rpos += n
	return nil
}

const (
	maskContinue = 0x80
	maskPayload  = 0x7F
)

// ReadVarInt reads the Target Protocol's packed-continuation-bit VarInt: up
// to 5 bytes, 7 payload bits each, little-end-packed. If the loop runs out
// of 32 bits of offset without finding a terminating byte, a "too much data"
// warning is logged and the accumulated value is returned anyway rather than
// treated as an error.
func (c *Cursor) ReadVarInt() (uint32, error) {
	var value uint32
	var offset uint
	for offset < 32 {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&maskPayload) << offset
		if b&maskContinue == 0 {
			return value, nil
		}
		offset += 7
	}
	logger.Warnf("bytecursor: read_var_int: too much data")
	return value, nil
}

// ReadVarShort reads the VarInt encoding capped at a 16-bit payload, then
// sign-extends values above 32767 as a signed int16.
func (c *Cursor) ReadVarShort() (int16, error) {
	var value int32
	var offset uint
	for offset < 16 {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		value |= int32(b&maskPayload) << offset
		if b&maskContinue == 0 {
			break
		}
		offset += 7
	}
	if value > 32767 {
		value -= 65536
	}
	return int16(value), nil
}

// ReadVarLong reads the two-phase 28-bit low/high VarInt encoding used for
// 64-bit values: high*2^32 + low.
func (c *Cursor) ReadVarLong() (uint64, error) {
	var low uint32
	var offset uint
	for offset < 28 {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		low |= uint32(b&maskPayload) << offset
		if b&maskContinue == 0 {
			return uint64(low), nil
		}
		offset += 7
	}

	b, err := c.ReadU8()
	if err != nil {
		return 0, err
	}
	low |= uint32(b&0x0F) << 28
	var high uint32 = uint32(b&maskPayload) >> 4
	if b&maskContinue == 0 {
		return uint64(high)<<32 + uint64(low), nil
	}

	offset = 3
	for offset < 32+3 {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		high |= uint32(b&maskPayload) << offset
		if b&maskContinue == 0 {
			break
		}
		offset += 7
	}
	return uint64(high)<<32 + uint64(low), nil
}

// ReadVarUhInt shares ReadVarInt's wire encoding; the "Uh" (unsigned-host)
// variants differ only in how callers interpret the result.
func (c *Cursor) ReadVarUhInt() (uint32, error) { return c.ReadVarInt() }

// ReadVarUhShort shares ReadVarShort's wire encoding without the sign
// extension: callers treat the low 16 bits as unsigned.
func (c *Cursor) ReadVarUhShort() (uint16, error) {
	var value uint32
	var offset uint
	for offset < 16 {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&maskPayload) << offset
		if b&maskContinue == 0 {
			break
		}
		offset += 7
	}
	return uint16(value), nil
}

// ReadVarUhLong shares ReadVarLong's wire encoding.
func (c *Cursor) ReadVarUhLong() (uint64, error) { return c.ReadVarLong() }
