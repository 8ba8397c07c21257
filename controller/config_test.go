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

package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetFlowExpiredDefaultsWhenUnset(t *testing.T) {
	c := Config{}
	assert.Equal(t, 5*time.Minute, c.GetFlowExpired())
}

func TestGetFlowExpiredDefaultsWhenTooSmall(t *testing.T) {
	c := Config{FlowExpired: time.Second}
	assert.Equal(t, 5*time.Minute, c.GetFlowExpired())
}

func TestGetFlowExpiredHonorsConfiguredValue(t *testing.T) {
	c := Config{FlowExpired: 10 * time.Minute}
	assert.Equal(t, 10*time.Minute, c.GetFlowExpired())
}

func TestGetDrainIntervalDefaultsWhenUnset(t *testing.T) {
	c := Config{}
	assert.Equal(t, 200*time.Millisecond, c.GetDrainInterval())
}

func TestGetDrainIntervalHonorsConfiguredValue(t *testing.T) {
	c := Config{DrainInterval: time.Second}
	assert.Equal(t, time.Second, c.GetDrainInterval())
}
