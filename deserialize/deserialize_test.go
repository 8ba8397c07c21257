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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marienilba/dofuscap/bytecursor"
	"github.com/marienilba/dofuscap/schema"
)

func mustCatalog(t *testing.T, doc string) *schema.Catalog {
	t.Helper()
	cat, err := schema.LoadBytes([]byte(doc))
	require.NoError(t, err)
	return cat
}

// Scenario A: id=10 "Hello" with one UTF var "name".
func TestScenarioA_SingleUTFField(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {"10": {"name": "Hello", "parent": null, "bool_vars": [], "vars": [
	    {"name": "name", "type": "UTF", "length": null, "optional": false}
	  ]}},
	  "types_from_id": {}, "types": {}
	}`)
	body := []byte{0x00, 0x05, 'H', 'e', 'l', 'l', 'o'}
	cur := bytecursor.New(body)

	fields, err := Deserialize(cur, "Hello", cat)
	require.NoError(t, err)
	assert.Zero(t, cur.BytesAvailable())

	name, ok := fields.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Hello", name)
}

// Scenario E: polymorphic ID field merges the resolved sub-type's fields
// at the top level, without an "item" wrapper.
func TestScenarioE_PolymorphicIDMergesUpward(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {"9": {"name": "Holder", "parent": null, "bool_vars": [], "vars": [
	    {"name": "item", "type": "ID", "length": null, "optional": false}
	  ]}},
	  "types_from_id": {"77": {"name": "ItemX", "parent": null, "bool_vars": [], "vars": [
	    {"name": "q", "type": "VarShort", "length": null, "optional": false}
	  ]}},
	  "types": {}
	}`)
	body := []byte{0x00, 0x4D, 0x2A} // u16 id=77, VarShort 42
	cur := bytecursor.New(body)

	fields, err := Deserialize(cur, "Holder", cat)
	require.NoError(t, err)

	_, hasWrapper := fields.Get("item")
	assert.False(t, hasWrapper, "scalar ID field must not produce a wrapper object")

	q, ok := fields.Get("q")
	require.True(t, ok)
	assert.Equal(t, int16(42), q)
}

// Scenario F: three bool_vars a,b,c packed into byte 0x05 (bits 0,1,2).
func TestScenarioF_BitPackedBooleans(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {"20": {"name": "Flags", "parent": null,
	    "bool_vars": [{"name": "a"}, {"name": "b"}, {"name": "c"}], "vars": []}},
	  "types_from_id": {}, "types": {}
	}`)
	cur := bytecursor.New([]byte{0x05})

	fields, err := Deserialize(cur, "Flags", cat)
	require.NoError(t, err)

	a, _ := fields.Get("a")
	b, _ := fields.Get("b")
	c, _ := fields.Get("c")
	assert.Equal(t, true, a)
	assert.Equal(t, false, b)
	assert.Equal(t, true, c)
}

// Nine bool_vars span two bytes; the second byte only supplies one bit.
func TestBoolVarsSpanningMultipleBytes(t *testing.T) {
	doc := `{
	  "msg_from_id": {"21": {"name": "Nine", "parent": null,
	    "bool_vars": [
	      {"name":"a"},{"name":"b"},{"name":"c"},{"name":"d"},{"name":"e"},
	      {"name":"f"},{"name":"g"},{"name":"h"},{"name":"i"}
	    ], "vars": []}},
	  "types_from_id": {}, "types": {}
	}`
	c := mustCatalog(t, doc)
	// byte0 = 0xFF (all of a..h true), byte1 = 0x01 (i true)
	cur := bytecursor.New([]byte{0xFF, 0x01})
	fields, err := Deserialize(cur, "Nine", c)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		v, _ := fields.Get(name)
		assert.Equal(t, true, v, name)
	}
	iVal, _ := fields.Get("i")
	assert.Equal(t, true, iVal)
	assert.Zero(t, cur.BytesAvailable())
}

func TestParentFieldsPrecedeChildFields(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {},
	  "types_from_id": {},
	  "types": {
	    "Base": {"name": "Base", "parent": null, "bool_vars": [], "vars": [
	      {"name": "x", "type": "Byte", "length": null, "optional": false}
	    ]},
	    "Child": {"name": "Child", "parent": "Base", "bool_vars": [], "vars": [
	      {"name": "y", "type": "Byte", "length": null, "optional": false}
	    ]}
	  }
	}`)
	cur := bytecursor.New([]byte{1, 2})
	fields, err := Deserialize(cur, "Child", cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, fields.Keys())
}

func TestOptionalGuardStopsReadingRemainder(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {},
	  "types_from_id": {},
	  "types": {
	    "Opt": {"name": "Opt", "parent": null, "bool_vars": [], "vars": [
	      {"name": "maybe", "type": "Byte", "length": null, "optional": true},
	      {"name": "never", "type": "Byte", "length": null, "optional": false}
	    ]}
	  }
	}`)
	// guard byte nonzero: "maybe" is absent and "never" is never read.
	cur := bytecursor.New([]byte{0x01})
	fields, err := Deserialize(cur, "Opt", cat)
	require.NoError(t, err)
	assert.Zero(t, fields.Len())
	assert.Zero(t, cur.BytesAvailable())
}

func TestArrayOfIDProducesNestedSubObjects(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {},
	  "types_from_id": {"5": {"name": "Leaf", "parent": null, "bool_vars": [], "vars": [
	    {"name": "v", "type": "Byte", "length": null, "optional": false}
	  ]}},
	  "types": {
	    "List": {"name": "List", "parent": null, "bool_vars": [], "vars": [
	      {"name": "items", "type": "ID", "length": 2, "optional": false}
	    ]}
	  }
	}`)
	// two elements: id=5,val=9 and id=5,val=10
	cur := bytecursor.New([]byte{0x00, 0x05, 9, 0x00, 0x05, 10})
	fields, err := Deserialize(cur, "List", cat)
	require.NoError(t, err)

	raw, ok := fields.Get("items")
	require.True(t, ok)
	arr, ok := raw.([]*Fields)
	require.True(t, ok)
	require.Len(t, arr, 2)
	v0, _ := arr[0].Get("v")
	v1, _ := arr[1].Get("v")
	assert.Equal(t, int8(9), v0)
	assert.Equal(t, int8(10), v1)
}

func TestUnknownTypeErrors(t *testing.T) {
	cat := mustCatalog(t, `{"msg_from_id": {}, "types_from_id": {}, "types": {}}`)
	cur := bytecursor.New([]byte{})
	_, err := Deserialize(cur, "Nope", cat)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestShortBufferErrors(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {},
	  "types_from_id": {},
	  "types": {"Num": {"name": "Num", "parent": null, "bool_vars": [], "vars": [
	    {"name": "v", "type": "Int", "length": null, "optional": false}
	  ]}}
	}`)
	cur := bytecursor.New([]byte{1, 2}) // Int needs 4 bytes
	_, err := Deserialize(cur, "Num", cat)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
