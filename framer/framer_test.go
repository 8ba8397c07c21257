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

package framer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marienilba/dofuscap/queue"
	"github.com/marienilba/dofuscap/schema"
)

func mustCatalog(t *testing.T, doc string) *schema.Catalog {
	t.Helper()
	cat, err := schema.LoadBytes([]byte(doc))
	require.NoError(t, err)
	return cat
}

// header builds the 2-byte hi_header: id in the high 14 bits, length_type
// in the low 2 bits, as the wire grammar in section 6 defines it.
func header(id uint16, lengthType byte) []byte {
	hi := (id << 2) | uint16(lengthType)
	return []byte{byte(hi >> 8), byte(hi)}
}

// message builds one complete wire message: header, optional client
// instance id, a length field sized for lengthType, then body.
func message(id uint16, lengthType byte, clientInstanceID *uint32, body []byte) []byte {
	out := header(id, lengthType)
	if clientInstanceID != nil {
		v := *clientInstanceID
		out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	switch lengthType {
	case 0:
		// no length field
	case 1:
		out = append(out, byte(len(body)))
	case 2:
		n := uint16(len(body))
		out = append(out, byte(n>>8), byte(n))
	case 3:
		n := len(body)
		out = append(out, byte(n>>16), byte(n>>8), byte(n))
	}
	return append(out, body...)
}

const helloAndDataCatalog = `{
  "msg_from_id": {
    "10": {"name": "Hello", "parent": null, "bool_vars": [], "vars": [
      {"name": "name", "type": "UTF", "length": null, "optional": false}
    ]},
    "12": {"name": "Data", "parent": null, "bool_vars": [], "vars": [
      {"name": "payload", "type": "ByteArray", "length": null, "optional": false}
    ]},
    "5": {"name": "Tiny", "parent": null, "bool_vars": [], "vars": [
      {"name": "v", "type": "Byte", "length": null, "optional": false}
    ]}
  },
  "types_from_id": {}, "types": {}
}`

// utfBody encodes a UTF field's wire bytes: u16 length then UTF-8 text.
func utfBody(s string) []byte {
	n := uint16(len(s))
	return append([]byte{byte(n >> 8), byte(n)}, []byte(s)...)
}

// byteArrayBody encodes a ByteArray field's wire bytes: VarInt length then
// the raw bytes, matching bytecursor's Read("ByteArray").
func byteArrayBody(b []byte) []byte {
	n := len(b)
	var out []byte
	for {
		x := byte(n & 0x7F)
		n >>= 7
		if n != 0 {
			out = append(out, x|0x80)
		} else {
			out = append(out, x)
			break
		}
	}
	return append(out, b...)
}

func TestScenarioA_NoSplit(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	q := queue.New()
	fr := New(cat, q)

	segment := message(10, 1, nil, utfBody("Hello"))
	fr.Feed(segment, ServerPort, time.Now())

	recs := q.Drain()
	require.Len(t, recs, 1)
	rec := recs[0].(Record)
	assert.Equal(t, uint16(10), rec.ID)
	assert.Equal(t, "Hello", rec.Name)
	assert.Equal(t, "Server", rec.Source)
	name, _ := rec.Body.Get("name")
	assert.Equal(t, "Hello", name)
}

func TestScenarioB_SplitAcrossSegments(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	q := queue.New()
	fr := New(cat, q)

	whole := message(12, 1, nil, byteArrayBody([]byte{10, 1, 2, 3, 4, 5, 6, 7}))
	seg1 := whole[:len(whole)-4]
	seg2 := whole[len(whole)-4:]

	fr.Feed(seg1, ServerPort, time.Now())
	assert.Empty(t, q.Drain(), "no record until the split message completes")

	fr.Feed(seg2, ServerPort, time.Now())
	recs := q.Drain()
	require.Len(t, recs, 1)
	rec := recs[0].(Record)
	payload, ok := rec.Body.Get("payload")
	require.True(t, ok)
	assert.Equal(t, []byte{10, 1, 2, 3, 4, 5, 6, 7}, payload)
}

func TestScenarioC_ClientInstanceIDStripped(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	q := queue.New()
	fr := New(cat, q)

	instanceID := uint32(42)
	segment := message(5, 1, &instanceID, []byte{0x07})
	fr.Feed(segment, 54321, time.Now())

	recs := q.Drain()
	require.Len(t, recs, 1)
	rec := recs[0].(Record)
	assert.Equal(t, uint16(5), rec.ID)
	assert.Equal(t, "Client", rec.Source)
	v, _ := rec.Body.Get("v")
	assert.Equal(t, int8(7), v)
}

func TestScenarioD_UnknownIDDropsTail(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {"10": {"name": "Hello", "parent": null, "bool_vars": [], "vars": []}},
	  "types_from_id": {}, "types": {}
	}`)
	q := queue.New()
	fr := New(cat, q)

	segment := append(message(10, 0, nil, nil), 0xFF, 0xFF, 0xFF, 0xFF)
	fr.Feed(segment, ServerPort, time.Now())

	recs := q.Drain()
	require.Len(t, recs, 1)
	assert.Equal(t, uint16(10), recs[0].(Record).ID)
}

func TestReassemblyIdempotentAcrossSplitPoint(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	whole := message(12, 1, nil, byteArrayBody([]byte{10, 1, 2, 3, 4, 5, 6, 7}))

	q1 := queue.New()
	fr1 := New(cat, q1)
	fr1.Feed(whole, ServerPort, time.Now())
	oneShot := q1.Drain()
	require.Len(t, oneShot, 1)

	for k := 1; k < len(whole); k++ {
		q2 := queue.New()
		fr2 := New(cat, q2)
		fr2.Feed(whole[:k], ServerPort, time.Now())
		fr2.Feed(whole[k:], ServerPort, time.Now())
		split := q2.Drain()
		require.Len(t, split, 1, "split at %d", k)

		a := oneShot[0].(Record)
		b := split[0].(Record)
		assert.Equal(t, a.ID, b.ID)
		assert.Equal(t, a.Name, b.Name)
		ap, _ := a.Body.Get("payload")
		bp, _ := b.Body.Get("payload")
		assert.Equal(t, ap, bp)
	}
}

func TestOrderPreservedWithinSegment(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	q := queue.New()
	fr := New(cat, q)

	msg1 := message(10, 1, nil, utfBody("Hello"))
	msg2 := message(5, 1, nil, []byte{7})
	segment := append(append([]byte{}, msg1...), msg2...)
	fr.Feed(segment, ServerPort, time.Now())

	recs := q.Drain()
	require.Len(t, recs, 2)
	assert.Equal(t, uint16(10), recs[0].(Record).ID)
	assert.Equal(t, uint16(5), recs[1].(Record).ID)
}

func TestTrimMismatchAdvancesToDeclaredEnd(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	q := queue.New()
	fr := New(cat, q)

	// declared length covers the UTF field plus two bytes of trailing
	// padding the schema doesn't account for.
	body := append(utfBody("Hello"), 0xAA, 0xBB)
	msg1 := message(10, 1, nil, body)
	msg2 := message(5, 1, nil, []byte{9})
	segment := append(append([]byte{}, msg1...), msg2...)

	fr.Feed(segment, ServerPort, time.Now())
	recs := q.Drain()
	require.Len(t, recs, 2)
	assert.Equal(t, uint16(10), recs[0].(Record).ID)
	assert.Equal(t, uint16(5), recs[1].(Record).ID)
	v, _ := recs[1].(Record).Body.Get("v")
	assert.Equal(t, int8(9), v)
}

func TestKeepaliveDiscardsRestOfSegment(t *testing.T) {
	cat := mustCatalog(t, `{
	  "msg_from_id": {
	    "0": {"name": "Keepalive", "parent": null, "bool_vars": [], "vars": []},
	    "10": {"name": "Hello", "parent": null, "bool_vars": [], "vars": [
	      {"name": "name", "type": "UTF", "length": null, "optional": false}
	    ]}
	  },
	  "types_from_id": {}, "types": {}
	}`)
	q := queue.New()
	fr := New(cat, q)

	keepalive := message(0, 0, nil, nil)
	trailing := message(10, 1, nil, utfBody("Hello"))
	segment := append(append([]byte{}, keepalive...), trailing...)

	fr.Feed(segment, ServerPort, time.Now())

	recs := q.Drain()
	assert.Empty(t, recs, "the valid header trailing a keepalive must be discarded, not decoded")
}

func TestUnknownIDLoggedAndRemainderDropped(t *testing.T) {
	cat := mustCatalog(t, helloAndDataCatalog)
	q := queue.New()
	fr := New(cat, q)

	good := message(10, 1, nil, utfBody("Hi"))
	garbage := []byte{0xFF, 0xFF}
	segment := append(append([]byte{}, good...), garbage...)
	fr.Feed(segment, ServerPort, time.Now())

	recs := q.Drain()
	require.Len(t, recs, 1)
	assert.Equal(t, uint16(10), recs[0].(Record).ID)
}
