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

package exporter

import "github.com/marienilba/dofuscap/framer"

// Sinker 负责将一批解码完成的 Record 写入到指定目标中
type Sinker interface {
	// Sink 写入一批 Record
	Sink(records []framer.Record) error

	// Close 关闭并进行资源清理
	Close()
}
