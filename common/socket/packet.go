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

package socket

import (
	"fmt"
	"time"
)

// TCPSegment is a reassembly-ready slice of one TCP direction's byte
// stream: the link, IP and TCP headers have already been stripped off by the
// sniffer, leaving the TCP payload.
type TCPSegment struct {
	Tuple   Tuple
	Time    time.Time
	FIN     bool
	Seq     uint32
	Payload []byte
}

func (s TCPSegment) String() string {
	return fmt.Sprintf("stream %s seq: %d recv %d bytes", s.Tuple, s.Seq, len(s.Payload))
}
