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

import "time"

type Config struct {
	// SchemaPath 指向启动时一次性加载的消息类型目录 JSON 文件
	SchemaPath string `config:"schemaPath"`

	// FlowExpired 未活跃 flow 方向的过期时间
	FlowExpired time.Duration `config:"flowExpired"`

	// DrainInterval 控制 DecodedQueue 被消费并转发至 UI sink 的频率
	DrainInterval time.Duration `config:"drainInterval"`
}

func (c Config) GetFlowExpired() time.Duration {
	if c.FlowExpired < time.Minute {
		return 5 * time.Minute
	}
	return c.FlowExpired
}

func (c Config) GetDrainInterval() time.Duration {
	if c.DrainInterval <= 0 {
		return 200 * time.Millisecond
	}
	return c.DrainInterval
}
