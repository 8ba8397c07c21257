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

package sniffer

import (
	"strconv"
	"strings"
)

// DefaultPort Target Protocol 使用的 TCP 端口 与 spec 保持一致
const DefaultPort = 5555

type Config struct {
	// File 指定是否从文件中加载网络包 与监听网卡选项互斥
	File string `config:"file"`

	// Ifaces 指定监听的网卡 与 tcpdump 的 -i 参数一致
	Ifaces string `config:"ifaces"`

	// Engine 指定监听引擎 目前仅支持 pcap
	Engine string `config:"engine"`

	// IPv4Only 仅监听 ipv4 网卡
	IPv4Only bool `config:"ipv4Only"`

	// Host 可选 仅捕获与该主机相关的流量
	Host string `config:"host"`

	// Port 捕获的 TCP 端口 默认为 Target Protocol 的 5555
	Port uint16 `config:"port"`

	// NoPromiscuous 是否关闭 promiscuous 模式
	NoPromiscuous bool `config:"noPromiscuous"`

	// BlockNum 缓冲区 block 数量（仅 Linux 生效）
	// 实际代表着生成的 buffer 区域空间为 (1/2 * blockNum) MB 即默认 bufferSize 为 8MB
	// 该数值仅能设置为 16 的倍数 非法数值将重置为默认值
	BlockNum int `config:"blockNum"`
}

// CompileBPFFilter 编译捕获所用的 BPF 过滤语法 固定只捕获 Target Protocol
// 的 TCP 流量 可选再叠加 host 限定
func (c *Config) CompileBPFFilter() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	var buf strings.Builder
	buf.WriteString("tcp port ")
	buf.WriteString(strconv.Itoa(int(port)))

	if c.Host != "" {
		buf.WriteString(" and host ")
		buf.WriteString(c.Host)
	}
	return buf.String()
}
