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

package bytecursor

import "github.com/pkg/errors"

// Primitives lists every wire-level scalar type name recognized by Read.
// Anything else is a user-defined type name or the "ID" sentinel, resolved
// by the schema/deserialize layers rather than here.
var Primitives = map[string]bool{
	"Boolean":       true,
	"Byte":          true,
	"ByteArray":     true,
	"Double":        true,
	"Float":         true,
	"Int":           true,
	"Short":         true,
	"UTF":           true,
	"UnsignedByte":  true,
	"UnsignedInt":   true,
	"UnsignedShort": true,
	"VarInt":        true,
	"VarLong":       true,
	"VarShort":      true,
	"VarUhInt":      true,
	"VarUhLong":     true,
	"VarUhShort":    true,
}

// ErrUnknownPrimitive is returned by Read for a kind not in Primitives.
var ErrUnknownPrimitive = errors.New("bytecursor: unknown primitive kind")

// Read dispatches on a primitive type name and returns a Go value of the
// matching host type: bool, int8/int16/int32, uint8/uint16/uint32/uint64,
// float32/float64, string or []byte.
//
// Double is read as a big-endian f64 and its absolute value is taken; this
// mirrors a quirk of the reference encoder and must be preserved bit for
// bit rather than "fixed".
func (c *Cursor) Read(kind string) (any, error) {
	switch kind {
	case "Boolean":
		v, err := c.ReadI8()
		return v != 0, err
	case "Byte":
		return c.ReadI8()
	case "ByteArray":
		n, err := c.ReadVarInt()
		if err != nil {
			return nil, err
		}
		return c.ReadBytes(int(n))
	case "Double":
		v, err := c.ReadF64()
		if v < 0 {
			v = -v
		}
		return v, err
	case "Float":
		return c.ReadF32()
	case "Int":
		return c.ReadI32()
	case "Short":
		return c.ReadI16()
	case "UTF":
		return c.ReadUTF()
	case "UnsignedByte":
		return c.ReadU8()
	case "UnsignedInt":
		return c.ReadU32()
	case "UnsignedShort":
		return c.ReadU16()
	case "VarInt":
		return c.ReadVarInt()
	case "VarLong":
		return c.ReadVarLong()
	case "VarShort":
		return c.ReadVarShort()
	case "VarUhInt":
		return c.ReadVarUhInt()
	case "VarUhLong":
		return c.ReadVarUhLong()
	case "VarUhShort":
		return c.ReadVarUhShort()
	default:
		return nil, errors.Wrapf(ErrUnknownPrimitive, "%q", kind)
	}
}
