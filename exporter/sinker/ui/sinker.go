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

// Package ui is the single sink Target Protocol records are forwarded to:
// a UI event channel, standing in for the real frontend's event bus.
package ui

import (
	"io"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/marienilba/dofuscap/framer"
)

// Config controls where the UI sink writes. Console and Filename are
// mutually exclusive; Console wins when both are set.
type Config struct {
	Console    bool   `config:"console"`
	Filename   string `config:"filename"`
	MaxSize    int    `config:"maxSize"`
	MaxBackups int    `config:"maxBackups"`
	MaxAge     int    `config:"maxAge"`
}

func (c *Config) Validate() {
	if c.Filename == "" {
		c.Filename = "records.log"
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 100
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 7
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 10
	}
}

// payload is the wire envelope the UI side expects for a drained batch.
type payload struct {
	Data []framer.Record `json:"data"`
}

// Sinker writes drained Records as a single `{"data": [...]}` JSON object
// per batch, one batch per line.
type Sinker struct {
	wr io.WriteCloser
}

// New builds a Sinker writing to stdout or a rotating log file per cfg.
func New(cfg Config) (*Sinker, error) {
	cfg.Validate()

	var wr io.WriteCloser
	if cfg.Console {
		wr = os.Stdout
	} else {
		wr = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			LocalTime:  true,
		}
	}
	return &Sinker{wr: wr}, nil
}

// publishWriter adapts a named-channel callback (standing in for a Tauri
// "rs2js" event emitter) to io.WriteCloser so Sinker can target either a
// file or an embedder-supplied channel uniformly.
type publishWriter struct {
	name    string
	publish func(name string, payload []byte)
}

func (w *publishWriter) Write(p []byte) (int, error) {
	w.publish(w.name, p)
	return len(p), nil
}

func (w *publishWriter) Close() error { return nil }

// NewWithPublish builds a Sinker that hands each batch to publish instead
// of writing to a file, for embedders that bridge into their own UI event
// bus rather than tailing a log.
func NewWithPublish(name string, publish func(name string, payload []byte)) *Sinker {
	return &Sinker{wr: &publishWriter{name: name, publish: publish}}
}

func (s *Sinker) Sink(records []framer.Record) error {
	b, err := json.Marshal(payload{Data: records})
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = s.wr.Write(b)
	return err
}

func (s *Sinker) Close() {
	s.wr.Close()
}
