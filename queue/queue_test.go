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

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushDrainOrder(t *testing.T) {
	q := New()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	got := q.Drain()
	assert.Equal(t, []any{1, 2, 3}, got)
	assert.Zero(t, q.Len())
}

func TestDrainEmptyReturnsNil(t *testing.T) {
	q := New()
	assert.Nil(t, q.Drain())
}

func TestDrainIsDestructive(t *testing.T) {
	q := New()
	q.Push("a")
	q.Drain()
	assert.Nil(t, q.Drain())
}

func TestPushAfterCloseIsDiscarded(t *testing.T) {
	q := New()
	q.Push("kept")
	q.Close()
	q.Push("dropped")

	assert.True(t, q.Closed())
	assert.Equal(t, []any{"kept"}, q.Drain())
}
