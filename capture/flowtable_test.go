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

package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marienilba/dofuscap/common/socket"
	"github.com/marienilba/dofuscap/framer"
	"github.com/marienilba/dofuscap/queue"
	"github.com/marienilba/dofuscap/schema"
)

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat, err := schema.LoadBytes([]byte(`{
		"msg_from_id": {"10": {"name": "Ping", "vars": []}},
		"types_from_id": {},
		"types": {"Ping": {"vars": []}}
	}`))
	require.NoError(t, err)
	return cat
}

func clientServerTuple() (socket.Tuple, socket.Tuple) {
	client := socket.Tuple{
		SrcIP:   socket.ToIPV4([]byte{127, 0, 0, 1}),
		SrcPort: 40000,
		DstIP:   socket.ToIPV4([]byte{127, 0, 0, 1}),
		DstPort: framer.ServerPort,
	}
	return client, client.Mirror()
}

func TestFeedCreatesOneFramerPerDirection(t *testing.T) {
	cat := testCatalog(t)
	q := queue.New()
	ft := NewFlowTable(cat, q, time.Minute)
	defer ft.Close()

	toServer, toClient := clientServerTuple()

	ft.Feed(&socket.TCPSegment{Tuple: toServer, Time: time.Now(), Payload: []byte{0x00, 0x29, 1, 2, 3, 4}})
	ft.Feed(&socket.TCPSegment{Tuple: toClient, Time: time.Now(), Payload: []byte{0x00, 0x28, 0}})

	assert.Equal(t, 2, ft.Count())
}

func TestFeedIgnoresEmptyPayload(t *testing.T) {
	cat := testCatalog(t)
	q := queue.New()
	ft := NewFlowTable(cat, q, time.Minute)
	defer ft.Close()

	toServer, _ := clientServerTuple()
	ft.Feed(&socket.TCPSegment{Tuple: toServer, Time: time.Now(), Payload: nil})

	assert.Equal(t, 0, ft.Count())
}

func TestRemoveExpiredDropsIdleDirections(t *testing.T) {
	cat := testCatalog(t)
	q := queue.New()
	ft := NewFlowTable(cat, q, time.Millisecond)
	defer ft.Close()

	toServer, _ := clientServerTuple()
	ft.Feed(&socket.TCPSegment{Tuple: toServer, Time: time.Now(), Payload: []byte{0x00, 0x28, 0}})
	require.Equal(t, 1, ft.Count())

	time.Sleep(5 * time.Millisecond)
	ft.RemoveExpired()

	assert.Equal(t, 0, ft.Count())
}

func TestFeedSameDirectionReusesFramer(t *testing.T) {
	cat := testCatalog(t)
	q := queue.New()
	ft := NewFlowTable(cat, q, time.Minute)
	defer ft.Close()

	toServer, _ := clientServerTuple()
	// a bare 2-byte header (message id 0, length_type=0) on the client
	// direction: the framer stops at the missing instance id, but the
	// direction is still tracked.
	ft.Feed(&socket.TCPSegment{Tuple: toServer, Time: time.Now(), Payload: []byte{0x00, 0x00}})
	ft.Feed(&socket.TCPSegment{Tuple: toServer, Time: time.Now(), Payload: []byte{0x00, 0x00}})

	assert.Equal(t, 1, ft.Count())
}
