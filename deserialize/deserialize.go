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

// Package deserialize implements the recursive schema-directed interpreter
// that turns a message body's bytes into an ordered Fields tree using a
// schema.Catalog and a bytecursor.Cursor.
//
// Two behaviors in the reference implementation this package is grounded
// on are corrected here rather than reproduced: bit-packed boolean fields
// are read as ceil(B/8) bytes, 8 bits per byte (fewer for the last),
// LSB-first; and parent fields are read by recursing into the parent
// type's own spec, never back into the child's.
package deserialize

import (
	"github.com/pkg/errors"

	"github.com/marienilba/dofuscap/bytecursor"
	"github.com/marienilba/dofuscap/schema"
)

// maxDepth bounds parent-chain and nested-type recursion. Schema parent
// chains are shallow in practice (a handful of levels); this guards
// against a malformed or cyclic-looking catalog turning a single message
// into unbounded recursion.
const maxDepth = 64

var (
	// ErrUnknownType is returned when a field or parent reference names a
	// type absent from the catalog.
	ErrUnknownType = errors.New("deserialize: unknown type")
	// ErrShortBuffer is returned when a primitive read runs past the end
	// of the cursor.
	ErrShortBuffer = errors.New("deserialize: short buffer")
	// ErrMaxDepth is returned when recursion exceeds maxDepth.
	ErrMaxDepth = errors.New("deserialize: max recursion depth exceeded")
)

// Deserialize decodes one message body of type typeName from cur against
// cat, returning the ordered field tree.
func Deserialize(cur *bytecursor.Cursor, typeName string, cat *schema.Catalog) (*Fields, error) {
	return deserializeType(cur, typeName, cat, 0)
}

func deserializeType(cur *bytecursor.Cursor, typeName string, cat *schema.Catalog, depth int) (*Fields, error) {
	if depth > maxDepth {
		return nil, errors.Wrapf(ErrMaxDepth, "at type %q", typeName)
	}

	spec, ok := cat.TypeByName(typeName)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", typeName)
	}

	result := NewFields()

	if spec.Parent != nil {
		parentFields, err := deserializeType(cur, *spec.Parent, cat, depth+1)
		if err != nil {
			return nil, err
		}
		result.Merge(parentFields)
	}

	if err := readBoolVars(cur, spec, result); err != nil {
		return nil, err
	}

	for _, v := range spec.Vars {
		done, err := readField(cur, v, cat, depth, result)
		if err != nil {
			return nil, err
		}
		if done {
			// optional guard signalled "absent": stop reading the
			// remainder of this type and return what was accumulated.
			return result, nil
		}
	}

	return result, nil
}

// readBoolVars reads the bit-packed boolean block preceding a type's
// regular vars: ceil(B/8) bytes, 8 bits per byte (fewer for the trailing
// byte), bit 0 is the LSB.
func readBoolVars(cur *bytecursor.Cursor, spec schema.TypeSpec, result *Fields) error {
	b := len(spec.BoolVars)
	if b == 0 {
		return nil
	}

	idx := 0
	nBytes := (b + 7) / 8
	for byteI := 0; byteI < nBytes; byteI++ {
		raw, err := cur.ReadI8()
		if err != nil {
			return errors.Wrap(ErrShortBuffer, err.Error())
		}
		bitsInByte := 8
		if remaining := b - byteI*8; remaining < 8 {
			bitsInByte = remaining
		}
		for bit := 0; bit < bitsInByte; bit++ {
			val := (raw>>uint(bit))&1 != 0
			result.Set(spec.BoolVars[idx].Name, val)
			idx++
		}
	}
	return nil
}

// readField reads one FieldSpec into result. The returned bool is true iff
// an optional guard signalled the field (and therefore the rest of the
// type) is absent.
func readField(cur *bytecursor.Cursor, v schema.FieldSpec, cat *schema.Catalog, depth int, result *Fields) (bool, error) {
	if v.Optional {
		guard, err := cur.ReadI8()
		if err != nil {
			return false, errors.Wrap(ErrShortBuffer, err.Error())
		}
		if guard != 0 {
			return true, nil
		}
	}

	if bytecursor.Primitives[v.Type] {
		return false, readPrimitiveField(cur, v, cat, result)
	}
	return false, readCompositeField(cur, v, cat, depth, result)
}

func readPrimitiveField(cur *bytecursor.Cursor, v schema.FieldSpec, cat *schema.Catalog, result *Fields) error {
	if v.Length == nil {
		val, err := cur.Read(v.Type)
		if err != nil {
			return errors.Wrap(ErrShortBuffer, err.Error())
		}
		result.Set(v.Name, val)
		return nil
	}

	n, err := resolveLength(cur, v.Length)
	if err != nil {
		return err
	}
	arr := make([]any, 0, n)
	for i := 0; i < n; i++ {
		val, err := cur.Read(v.Type)
		if err != nil {
			return errors.Wrap(ErrShortBuffer, err.Error())
		}
		arr = append(arr, val)
	}
	result.Set(v.Name, arr)
	return nil
}

func readCompositeField(cur *bytecursor.Cursor, v schema.FieldSpec, cat *schema.Catalog, depth int, result *Fields) error {
	if v.Length == nil {
		sub, err := deserializeComposite(cur, v.Type, cat, depth)
		if err != nil {
			return err
		}
		result.Merge(sub)
		return nil
	}

	n, err := resolveLength(cur, v.Length)
	if err != nil {
		return err
	}
	arr := make([]*Fields, 0, n)
	for i := 0; i < n; i++ {
		sub, err := deserializeComposite(cur, v.Type, cat, depth)
		if err != nil {
			return err
		}
		arr = append(arr, sub)
	}
	result.Set(v.Name, arr)
	return nil
}

// deserializeComposite resolves "ID" polymorphism (a u16 wire id naming the
// concrete type) then recurses; non-ID composites recurse directly on the
// field's declared type name.
func deserializeComposite(cur *bytecursor.Cursor, typeName string, cat *schema.Catalog, depth int) (*Fields, error) {
	if typeName != "ID" {
		return deserializeType(cur, typeName, cat, depth+1)
	}

	id, err := cur.ReadU16()
	if err != nil {
		return nil, errors.Wrap(ErrShortBuffer, err.Error())
	}
	idSpec, ok := cat.TypeByID(id)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "ID %d", id)
	}
	return deserializeType(cur, idSpec.Name, cat, depth+1)
}

// resolveLength interprets a FieldSpec.Length: a JSON number is a fixed
// count; a string names a primitive to read as an unsigned count prefix.
func resolveLength(cur *bytecursor.Cursor, length any) (int, error) {
	switch l := length.(type) {
	case float64:
		return int(l), nil
	case string:
		val, err := cur.Read(l)
		if err != nil {
			return 0, errors.Wrap(ErrShortBuffer, err.Error())
		}
		n, err := toInt(val)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, errors.Errorf("deserialize: negative length prefix %d", n)
		}
		return n, nil
	default:
		return 0, errors.Errorf("deserialize: unsupported length value %#v", length)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	default:
		return 0, errors.Errorf("deserialize: length prefix read non-integer value %#v", v)
	}
}
