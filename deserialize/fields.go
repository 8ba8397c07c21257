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

package deserialize

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Fields is an ordered key/value tree: the decoded body of one message or
// one nested type. It is not a Go map because the UI collaborator renders
// fields in declaration order (parent fields, then bit-packed booleans,
// then regular vars in schema order).
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields returns an empty, ready-to-use Fields.
func NewFields() *Fields {
	return &Fields{values: make(map[string]any)}
}

// Set inserts or overwrites a field, preserving first-insertion order.
func (f *Fields) Set(name string, value any) {
	if _, exists := f.values[name]; !exists {
		f.keys = append(f.keys, name)
	}
	f.values[name] = value
}

// Get returns a field's value and whether it was present.
func (f *Fields) Get(name string) (any, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Merge appends other's fields after f's own, in other's order. Used both
// for parent-before-child field ordering and for polymorphic ID merge.
func (f *Fields) Merge(other *Fields) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		f.Set(k, other.values[k])
	}
}

// Len reports the number of distinct fields.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Keys returns the field names in declaration order.
func (f *Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

// MarshalJSON emits the fields as a JSON object, preserving insertion
// order rather than the random order of a Go map.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
